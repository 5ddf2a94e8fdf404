// Package source provides byte sources for the streamer: anything that can
// turn a resource key into encoded image bytes.
//
// The sub-packages cover a local or in-memory filesystem (billyfs), an
// S3-compatible object store (s3) and a raw-byte LRU in front of either
// (lrucache). Router dispatches keys to them by URL scheme.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IvanBrykalov/tilestream/tier"
)

// ErrNotFound is returned (wrapped) when a source has no object for a key.
var ErrNotFound = errors.New("source: not found")

// ErrNoRoute is returned by Router when no fetcher handles a key's scheme.
var ErrNoRoute = errors.New("source: no route")

// Fetcher returns the encoded bytes stored under key. It has the same method
// set as streamer.Fetcher, so every implementation here plugs straight in.
type Fetcher interface {
	Fetch(ctx context.Context, key tier.Key) ([]byte, error)
}

// Func adapts a plain function to Fetcher.
type Func func(ctx context.Context, key tier.Key) ([]byte, error)

// Fetch implements Fetcher.
func (f Func) Fetch(ctx context.Context, key tier.Key) ([]byte, error) { return f(ctx, key) }

// NotFound wraps ErrNotFound with the key that was missing.
func NotFound(key tier.Key) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Split separates a key into its lower-cased scheme and the remainder.
// Keys without "://" have an empty scheme.
func Split(key tier.Key) (scheme, rest string) {
	s := string(key)
	i := strings.Index(s, "://")
	if i <= 0 {
		return "", s
	}
	return strings.ToLower(s[:i]), s[i+3:]
}

// Router dispatches Fetch by key scheme ("file", "s3", ...). Keys with no
// scheme, or a scheme with no route, go to the fallback when there is one.
// Configure it before use; it is read-only afterwards.
type Router struct {
	routes   map[string]Fetcher
	fallback Fetcher
}

// NewRouter returns a Router that sends unrouted keys to fallback (may be nil).
func NewRouter(fallback Fetcher) *Router {
	return &Router{routes: make(map[string]Fetcher), fallback: fallback}
}

// Handle routes scheme to f and returns r for chaining.
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.routes[strings.ToLower(scheme)] = f
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, key tier.Key) ([]byte, error) {
	scheme, _ := Split(key)
	if f, ok := r.routes[scheme]; ok {
		return f.Fetch(ctx, key)
	}
	if r.fallback != nil {
		return r.fallback.Fetch(ctx, key)
	}
	return nil, fmt.Errorf("%w: scheme %q in %s", ErrNoRoute, scheme, key)
}
