// Package billyfs serves resource keys from a go-billy filesystem: a local
// directory in production, memfs in tests and benchmarks.
package billyfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/IvanBrykalov/tilestream/source"
	"github.com/IvanBrykalov/tilestream/tier"
)

// FS reads keys as slash-separated paths below root. A "file://" prefix is
// stripped. Safe for concurrent use if the underlying filesystem is.
type FS struct {
	fs   billy.Filesystem
	root string
}

// New wraps fs; keys resolve below root ("" for the filesystem root).
func New(fs billy.Filesystem, root string) *FS {
	return &FS{fs: fs, root: root}
}

// NewOS serves keys from the directory dir on disk.
func NewOS(dir string) *FS { return New(osfs.New(dir), "") }

// NewMemory returns an empty in-memory store; fill it with Put.
func NewMemory() *FS { return New(memfs.New(), "") }

// Filesystem returns the underlying billy filesystem.
func (f *FS) Filesystem() billy.Filesystem { return f.fs }

// Fetch implements source.Fetcher.
func (f *FS) Fetch(ctx context.Context, key tier.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(f.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, source.NotFound(key)
		}
		return nil, fmt.Errorf("billyfs: read %s: %w", key, err)
	}
	return data, nil
}

// Put stores data under key, creating parent directories as needed.
func (f *FS) Put(key tier.Key, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(p); dir != "." && dir != "/" {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("billyfs: mkdir %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(f.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("billyfs: write %s: %w", key, err)
	}
	return nil
}

func (f *FS) path(key tier.Key) (string, error) {
	scheme, rest := source.Split(key)
	if scheme != "" && scheme != "file" {
		return "", fmt.Errorf("billyfs: unsupported scheme %q in %s", scheme, key)
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", fmt.Errorf("billyfs: empty path in key %q", key)
	}
	return f.fs.Join(f.root, path.Clean(rest)), nil
}
