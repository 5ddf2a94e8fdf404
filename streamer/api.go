package streamer

import (
	"context"
	"image"

	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

// Fetcher is the byte-acquisition collaborator: given a resource key it
// returns the raw encoded bytes, from a local store or a remote fetch.
// The streamer calls it once per decode task and never caches raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, key tier.Key) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key tier.Key) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key tier.Key) ([]byte, error) { return f(ctx, key) }

// Decoder turns encoded bytes into a bitmap. See package decode for the
// default implementation.
type Decoder interface {
	Decode(ctx context.Context, key tier.Key, data []byte) (image.Image, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, key tier.Key, data []byte) (image.Image, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, key tier.Key, data []byte) (image.Image, error) {
	return f(ctx, key, data)
}

// Registry enumerates live visual entities. The streamer only reads it:
// Source when resolving a tier, Bounds when computing priorities.
type Registry interface {
	Source(entityID string) (tier.Source, bool)
	Bounds(entityID string) (viewport.Rect, bool)
}

// Outcome is the result of RequestTier.
type Outcome int

const (
	// AlreadySatisfied: the entity already shows, or is already waiting
	// for, the resolved key. Nothing changed.
	AlreadySatisfied Outcome = iota
	// SwappedImmediately: the key was cached and the entity now shows it.
	SwappedImmediately
	// Scheduled: the entity waits on a decode task; see the returned Ticket.
	Scheduled
	// Unavailable: the entity is unknown, has no usable variant, or the
	// streamer is closed.
	Unavailable
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case AlreadySatisfied:
		return "already_satisfied"
	case SwappedImmediately:
		return "swapped_immediately"
	case Scheduled:
		return "scheduled"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}
