// Package config loads streamer settings from YAML with environment
// overrides and turns them into streamer.Options and a byte source.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/tilestream/source"
	"github.com/IvanBrykalov/tilestream/source/billyfs"
	"github.com/IvanBrykalov/tilestream/source/lrucache"
	"github.com/IvanBrykalov/tilestream/source/s3"
	"github.com/IvanBrykalov/tilestream/streamer"
	"github.com/IvanBrykalov/tilestream/tier"
)

// Config holds all tilestream configuration.
type Config struct {
	Streamer Streamer `yaml:"streamer"`
	Decode   Decode   `yaml:"decode"`
	Source   Source   `yaml:"source"`
	Viewer   Viewer   `yaml:"viewer"`
	Log      Log      `yaml:"log"`
}

// Streamer mirrors the tunables of streamer.Options.
type Streamer struct {
	Concurrency   int           `yaml:"concurrency"`
	Budget        ByteSize      `yaml:"budget"` // "256MiB"; 0 = unbounded
	HighWatermark float64       `yaml:"high_watermark"`
	LowWatermark  float64       `yaml:"low_watermark"`
	EvictionGrace time.Duration `yaml:"eviction_grace"`
	CapRichest    bool          `yaml:"cap_richest"`
	Padding       float64       `yaml:"padding"`
}

// Decode holds decoder settings.
type Decode struct {
	MaxDimension int `yaml:"max_dimension"` // 0 = keep native size
}

// Source selects where encoded bytes come from.
type Source struct {
	Kind  string    `yaml:"kind"` // "memory" | "dir" | "s3"
	Dir   string    `yaml:"dir"`
	S3    s3.Config `yaml:"s3"`
	Cache Cache     `yaml:"cache"`
}

// Cache configures the raw-byte cache in front of the source.
type Cache struct {
	MaxEntries   int      `yaml:"max_entries"` // 0 disables the cache
	MaxItemBytes ByteSize `yaml:"max_item_bytes"`
	Policy       string   `yaml:"policy"` // "lru" | "arc"
}

// Viewer maps viewport bands to the tier requested for them. Tiles in the
// Far band are released rather than requested.
type Viewer struct {
	InView tier.Tier `yaml:"in_view"`
	Near   tier.Tier `yaml:"near"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // auto | text | json
}

// ByteSize is a byte count that unmarshals from "64MiB", "1.5GB" or a
// plain integer.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: byte size must be a scalar", n.Line)
	}
	v, err := humanize.ParseBytes(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid byte size %q: %w", n.Line, n.Value, err)
	}
	*b = ByteSize(v)
	return nil
}

// String formats b in IEC units.
func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Streamer: Streamer{
			Concurrency:   streamer.DefaultConcurrency,
			Budget:        256 << 20,
			HighWatermark: streamer.DefaultHighWatermark,
			LowWatermark:  streamer.DefaultLowWatermark,
			EvictionGrace: 250 * time.Millisecond,
			Padding:       streamer.DefaultPadding,
		},
		Source: Source{
			Kind: "memory",
			Cache: Cache{
				MaxEntries: 1024,
				Policy:     string(lrucache.PolicyLRU),
			},
		},
		Viewer: Viewer{InView: tier.High, Near: tier.Low},
		Log:    Log{Level: "info", Format: "auto"},
	}
}

// Load reads a YAML config file at path over the defaults.
// A missing or empty file yields the defaults. Unknown fields are errors.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	return &cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// Comment-only files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	s := c.Streamer
	if s.Concurrency < 0 {
		return fmt.Errorf("config: streamer.concurrency must be non-negative, got %d", s.Concurrency)
	}
	if s.Budget < 0 {
		return fmt.Errorf("config: streamer.budget must be non-negative, got %d", s.Budget)
	}
	if s.LowWatermark < 0 || s.HighWatermark > 1 || s.LowWatermark > s.HighWatermark {
		return fmt.Errorf("config: watermarks must satisfy 0 <= low <= high <= 1, got low=%v high=%v",
			s.LowWatermark, s.HighWatermark)
	}
	if s.EvictionGrace < 0 {
		return fmt.Errorf("config: streamer.eviction_grace must be non-negative, got %v", s.EvictionGrace)
	}
	if c.Decode.MaxDimension < 0 {
		return fmt.Errorf("config: decode.max_dimension must be non-negative, got %d", c.Decode.MaxDimension)
	}
	switch c.Source.Kind {
	case "memory":
	case "dir":
		if c.Source.Dir == "" {
			return errors.New("config: source.dir is required for kind \"dir\"")
		}
	case "s3":
		if c.Source.S3.Endpoint == "" {
			return errors.New("config: source.s3.endpoint is required for kind \"s3\"")
		}
	default:
		return fmt.Errorf("config: source.kind must be \"memory\", \"dir\" or \"s3\", got %q", c.Source.Kind)
	}
	switch lrucache.Policy(c.Source.Cache.Policy) {
	case "", lrucache.PolicyLRU, lrucache.PolicyARC:
	default:
		return fmt.Errorf("config: source.cache.policy must be \"lru\" or \"arc\", got %q", c.Source.Cache.Policy)
	}
	if c.Source.Cache.MaxEntries < 0 {
		return fmt.Errorf("config: source.cache.max_entries must be non-negative, got %d", c.Source.Cache.MaxEntries)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be \"auto\", \"text\" or \"json\", got %q", c.Log.Format)
	}
	return nil
}

// ApplyEnv applies environment variable overrides.
// Supported: TILESTREAM_CONCURRENCY, TILESTREAM_BUDGET, TILESTREAM_LOG_LEVEL,
// TILESTREAM_SOURCE_DIR (also switches source.kind to "dir").
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("TILESTREAM_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid TILESTREAM_CONCURRENCY %q: %w", v, err)
		}
		c.Streamer.Concurrency = n
	}
	if v := os.Getenv("TILESTREAM_BUDGET"); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("config: invalid TILESTREAM_BUDGET %q: %w", v, err)
		}
		c.Streamer.Budget = ByteSize(n)
	}
	if v := os.Getenv("TILESTREAM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TILESTREAM_SOURCE_DIR"); v != "" {
		c.Source.Kind = "dir"
		c.Source.Dir = v
	}
	return nil
}

// SlogLevel parses Level; empty means info.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// Options converts the streamer section. Fetcher, Registry, Viewport and
// the observability hooks are left for the caller.
func (c *Config) Options() streamer.Options {
	s := c.Streamer
	return streamer.Options{
		Concurrency:   s.Concurrency,
		Budget:        int64(s.Budget),
		HighWatermark: s.HighWatermark,
		LowWatermark:  s.LowWatermark,
		EvictionGrace: s.EvictionGrace,
		CapRichest:    s.CapRichest,
		Padding:       s.Padding,
	}
}

// OpenSource builds the configured byte store, without the cache.
func (c *Config) OpenSource() (source.Fetcher, error) {
	switch c.Source.Kind {
	case "memory":
		return billyfs.NewMemory(), nil
	case "dir":
		return billyfs.NewOS(c.Source.Dir), nil
	case "s3":
		st, err := s3.New(c.Source.S3)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}
}

// WrapCache puts the configured byte cache in front of base. With
// cache.max_entries == 0 base is returned as is.
func (c *Config) WrapCache(base source.Fetcher) (source.Fetcher, error) {
	cc := c.Source.Cache
	if cc.MaxEntries == 0 {
		return base, nil
	}
	lc, err := lrucache.New(base, lrucache.Options{
		MaxEntries:   cc.MaxEntries,
		MaxItemBytes: int(cc.MaxItemBytes),
		Policy:       lrucache.Policy(cc.Policy),
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return lc, nil
}
