// Package s3 fetches resource keys from an S3-compatible object store
// (MinIO, AWS S3, R2, ...) with minio-go.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/IvanBrykalov/tilestream/source"
	"github.com/IvanBrykalov/tilestream/tier"
)

// Config holds object store settings.
type Config struct {
	// Endpoint is the server host:port (e.g. "localhost:9000").
	Endpoint string `yaml:"endpoint"`
	// Bucket is used for keys that do not name one ("s3://bucket/obj" does).
	Bucket string `yaml:"bucket"`
	// AccessKey and SecretKey are static V4 credentials.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// UseSSL enables HTTPS.
	UseSSL bool `yaml:"use_ssl"`
	// Region skips bucket-location lookups when set.
	Region string `yaml:"region"`
	// Prefix is prepended to plain object names.
	Prefix string `yaml:"prefix"`
	// MaxObjectSize rejects larger objects; 0 means no limit.
	MaxObjectSize int64 `yaml:"max_object_size"`

	// Client is an optional pre-built client; Endpoint and credentials are
	// then ignored.
	Client *minio.Client `yaml:"-"`
}

func (c *Config) validate() error {
	if c.Client != nil {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required when client is not provided")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("access key and secret key are required when client is not provided")
	}
	return nil
}

// Store implements source.Fetcher over an object store.
type Store struct {
	client  *minio.Client
	bucket  string
	prefix  string
	maxSize int64
}

// New validates cfg and builds a Store. No network call is made.
func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("s3: invalid config: %w", err)
	}
	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: create client: %w", err)
		}
	}
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		maxSize: cfg.MaxObjectSize,
	}, nil
}

// Locate maps a key to (bucket, object). "s3://bucket/path" names both;
// anything else is an object name under the configured bucket and prefix.
func (s *Store) Locate(key tier.Key) (bucket, object string, err error) {
	scheme, rest := source.Split(key)
	switch scheme {
	case "s3":
		bucket, object, _ = strings.Cut(rest, "/")
	case "":
		bucket, object = s.bucket, strings.TrimPrefix(rest, "/")
		if s.prefix != "" {
			object = s.prefix + "/" + object
		}
	default:
		return "", "", fmt.Errorf("s3: unsupported scheme %q in %s", scheme, key)
	}
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("s3: key %q does not name a bucket and object", key)
	}
	return bucket, object, nil
}

// Fetch implements source.Fetcher. Missing objects and buckets are reported
// as source.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, key tier.Key) ([]byte, error) {
	bucket, object, err := s.Locate(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(key, err)
	}
	defer obj.Close()

	var r io.Reader = obj
	if s.maxSize > 0 {
		r = io.LimitReader(obj, s.maxSize+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, translate(key, err)
	}
	if s.maxSize > 0 && int64(buf.Len()) > s.maxSize {
		return nil, fmt.Errorf("s3: %s exceeds %d bytes", key, s.maxSize)
	}
	return buf.Bytes(), nil
}

func translate(key tier.Key, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return source.NotFound(key)
	}
	return fmt.Errorf("s3: get %s: %w", key, err)
}
