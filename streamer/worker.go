package streamer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// worker is one decode loop. Exactly Options.Concurrency of them run, so at
// most that many fetch+decode calls are ever in flight.
func (s *Streamer) worker(ctx context.Context) error {
	for {
		tk, ok := s.next()
		if !ok {
			return nil
		}
		s.run(ctx, tk)
	}
}

// next blocks until a task is available or the streamer closes. Tasks whose
// key nobody wants anymore are dropped here, before any I/O: this is the
// only cancellation point.
func (s *Streamer) next() (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed {
			return nil, false
		}
		it, ok := s.queue.PopMin()
		if !ok {
			s.cond.Wait()
			continue
		}
		tk := it.Value
		if !s.desire.IsDesired(tk.key) {
			delete(s.tasks, tk.key)
			s.rejectLocked(tk, ErrCanceled)
			s.canceled++
			s.opt.Metrics.Decode(DecodeCanceled, 0)
			s.log.Debug("canceled before decode", "key", tk.key)
			continue
		}
		tk.state = taskRunning
		s.inFlight++
		s.publishQueueLocked()
		return tk, true
	}
}

// run performs the fetch+decode for tk outside the lock, then publishes the
// result to every waiter.
func (s *Streamer) run(ctx context.Context, tk *task) {
	start := time.Now()
	img, err := s.load(ctx, tk)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	delete(s.tasks, tk.key)
	defer s.publishQueueLocked()

	if s.closed {
		// Close cancels ctx, so whatever load returned is moot.
		s.rejectLocked(tk, ErrClosed)
		return
	}
	if err != nil {
		s.failed++
		var te *TaskError
		if errors.As(err, &te) {
			s.opt.Metrics.Decode(te.result(), elapsed)
		}
		s.log.Warn("decode task failed", "key", tk.key, "waiters", len(tk.waiters), "err", err)
		s.rejectLocked(tk, err)
		return
	}
	s.completeLocked(tk, newTexture(tk.key, img))
	s.decoded++
	s.opt.Metrics.Decode(DecodeOK, elapsed)
}

// completeLocked caches tex with one reference per waiter, switches every
// waiting entity to it and runs the budget enforcer before the tickets
// settle. With no waiters left the texture is still cached (ref 0) for reuse.
func (s *Streamer) completeLocked(tk *task, tex *Texture) {
	now := s.now()
	s.cache.insert(tk.key, tex, len(tk.waiters), now)
	for _, t := range tk.waiters {
		if e := s.entities[t.entity]; e != nil && e.pending == t {
			e.pending = nil
			s.showLocked(e, tk.key, t.tier, now)
		}
		s.desire.Decrement(tk.key)
	}

	if n := s.cache.enforce(now); n > 0 {
		s.log.Debug("budget eviction", "evicted", n, "bytes", s.cache.bytes, "budget", s.cache.budget)
	}

	for _, t := range tk.waiters {
		t.settle(tex, nil)
	}
	tk.waiters = nil
}

// load calls the Fetcher then the Decoder. A panic in either is turned into
// a task error so the worker loop survives.
func (s *Streamer) load(ctx context.Context, tk *task) (img image.Image, err error) {
	stage := ErrFetchFailed
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, &TaskError{Kind: stage, Key: tk.key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	data, err := s.opt.Fetcher.Fetch(ctx, tk.key)
	if err != nil {
		return nil, &TaskError{Kind: ErrFetchFailed, Key: tk.key, Err: err}
	}
	stage = ErrDecodeFailed
	img, err = s.opt.Decoder.Decode(ctx, tk.key, data)
	if err != nil {
		return nil, &TaskError{Kind: ErrDecodeFailed, Key: tk.key, Err: err}
	}
	if img == nil {
		return nil, &TaskError{Kind: ErrDecodeFailed, Key: tk.key, Err: fmt.Errorf("decoder returned no image")}
	}
	return img, nil
}
