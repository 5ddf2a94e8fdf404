package streamer

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultConcurrency   = 6
	DefaultHighWatermark = 0.92
	DefaultLowWatermark  = 0.85
	DefaultPadding       = 0.5
)

// EvictReason explains why a cache entry was removed.
type EvictReason int

const (
	// EvictBudget: removed by the budget enforcer after crossing the high watermark.
	EvictBudget EvictReason = iota
	// EvictPurge: removed by an explicit Purge.
	EvictPurge
	// EvictClose: dropped while the streamer was shutting down.
	EvictClose
)

// String implements fmt.Stringer.
func (r EvictReason) String() string {
	switch r {
	case EvictBudget:
		return "budget"
	case EvictPurge:
		return "purge"
	case EvictClose:
		return "close"
	default:
		return "unknown"
	}
}

// DecodeResult classifies how a decode task ended.
type DecodeResult int

const (
	// DecodeOK: fetched, decoded and cached.
	DecodeOK DecodeResult = iota
	// DecodeFetchFailed: the Fetcher returned an error.
	DecodeFetchFailed
	// DecodeFailed: the bytes could not be decoded.
	DecodeFailed
	// DecodeCanceled: dropped at the safe point because nobody wanted it.
	DecodeCanceled
)

// String implements fmt.Stringer.
func (r DecodeResult) String() string {
	switch r {
	case DecodeOK:
		return "ok"
	case DecodeFetchFailed:
		return "fetch_failed"
	case DecodeFailed:
		return "decode_failed"
	case DecodeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Metrics exposes streamer-level observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, bytes int64)
	Decode(result DecodeResult, elapsed time.Duration)
	Queue(depth, inFlight int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Streamer. Zero values are safe except for Fetcher and
// Registry; defaults are applied in New():
//   - Concurrency <= 0      => DefaultConcurrency
//   - HighWatermark == 0    => DefaultHighWatermark
//   - LowWatermark == 0     => DefaultLowWatermark
//   - nil Decoder           => decode.New(decode.Options{})
//   - nil Metrics           => NoopMetrics
//   - nil Logger            => discard
type Options struct {
	// Concurrency is the exact number of decode workers, and therefore the
	// hard cap on decodes in flight.
	Concurrency int

	// Budget is the decoded-bytes budget. 0 means unbounded (no eviction).
	Budget int64
	// HighWatermark and LowWatermark are fractions of Budget: crossing the
	// high mark triggers eviction down to the low mark.
	HighWatermark float64
	LowWatermark  float64
	// EvictionGrace is how long an unreferenced entry must stay idle before
	// it may be evicted. Dampens churn from fast panning.
	EvictionGrace time.Duration

	// CapRichest demotes High tiers for memory-constrained sessions.
	CapRichest bool

	// Fetcher supplies encoded bytes. Required.
	Fetcher Fetcher
	// Decoder turns bytes into bitmaps.
	Decoder Decoder
	// Registry describes live entities. Required.
	Registry Registry

	// Viewport is sampled for priorities; nil puts every task in the Far band
	// (pure FIFO).
	Viewport viewport.Provider
	// Padding is the Near-band margin as a fraction of the view size.
	// Negative disables the Near band; 0 => DefaultPadding.
	Padding float64

	// OnEvict is called for every evicted entry under the streamer lock;
	// keep it lightweight (e.g. queue a GPU texture for deletion).
	OnEvict func(key tier.Key, tex *Texture, reason EvictReason)
	Metrics Metrics
	Logger  *slog.Logger

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock
}
