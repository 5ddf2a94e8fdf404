package streamer

import (
	"context"

	"github.com/IvanBrykalov/tilestream/tier"
)

// Ticket is the handle for one scheduled request. It settles exactly once:
// with the decoded texture (the entity now displays it), with ErrCanceled if
// the request was cancelled or superseded before decode began, or with a
// task error.
type Ticket struct {
	s      *Streamer
	entity string
	key    tier.Key
	tier   tier.Tier
	done   chan struct{}

	// guarded by s.mu until done is closed; read-only afterwards.
	settled bool
	tex     *Texture
	err     error
}

func newTicket(s *Streamer, entity string, key tier.Key, t tier.Tier) *Ticket {
	return &Ticket{s: s, entity: entity, key: key, tier: t, done: make(chan struct{})}
}

// Key returns the resource key being loaded.
func (t *Ticket) Key() tier.Key { return t.key }

// Tier returns the effective tier the key was resolved at.
func (t *Ticket) Tier() tier.Tier { return t.tier }

// Entity returns the requesting entity.
func (t *Ticket) Entity() string { return t.entity }

// Done is closed once the ticket has settled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the ticket settles or ctx is done. Cancelling ctx does
// not cancel the request; call Cancel for that.
func (t *Ticket) Wait(ctx context.Context) (*Texture, error) {
	select {
	case <-t.done:
		return t.tex, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the settlement error, or nil if the ticket is still pending or
// succeeded.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel withdraws the request. If the decode has not started yet and no one
// else wants the key, it will not start. A decode already running still
// completes and is cached for reuse. Cancel after settlement is a no-op.
func (t *Ticket) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.cancelLocked(t, ErrCanceled)
}

// settle publishes the result; s.mu must be held.
func (t *Ticket) settle(tex *Texture, err error) bool {
	if t.settled {
		return false
	}
	t.settled = true
	t.tex, t.err = tex, err
	close(t.done)
	return true
}
