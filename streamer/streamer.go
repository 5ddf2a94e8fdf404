package streamer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/tilestream/decode"
	"github.com/IvanBrykalov/tilestream/internal/desire"
	"github.com/IvanBrykalov/tilestream/internal/keyheap"
	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

// entity is the per-entity quality state: what it shows and what, if
// anything, it is waiting for.
type entity struct {
	key     tier.Key // displayed key, tier.None if nothing yet
	tier    tier.Tier
	pending *Ticket
}

// Streamer is one canvas session's streaming cache. All methods are safe for
// concurrent use. Create it with New and release it with Close.
type Streamer struct {
	// ---- guarded by mu ----
	mu       sync.Mutex
	cond     *sync.Cond // signalled when a task is queued or on Close
	queue    *keyheap.Heap[tier.Key, *task]
	tasks    map[tier.Key]*task
	entities map[string]*entity
	cache    *resources
	inFlight int
	closed   bool

	desire   *desire.Tracker[tier.Key]
	resolver tier.Resolver
	prio     viewport.Prioritizer
	opt      Options
	log      *slog.Logger

	// outcome counters for Stats, guarded by mu
	decoded  int64
	failed   int64
	canceled int64
	evicted  int64

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

// New constructs a Streamer and starts its workers.
// It panics if Fetcher or Registry is nil or the watermarks are inconsistent.
func New(opt Options) *Streamer {
	if opt.Fetcher == nil {
		panic("streamer: Fetcher must be set")
	}
	if opt.Registry == nil {
		panic("streamer: Registry must be set")
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = DefaultConcurrency
	}
	if opt.HighWatermark == 0 {
		opt.HighWatermark = DefaultHighWatermark
	}
	if opt.LowWatermark == 0 {
		opt.LowWatermark = DefaultLowWatermark
	}
	if opt.LowWatermark < 0 || opt.LowWatermark > opt.HighWatermark || opt.HighWatermark > 1 {
		panic("streamer: watermarks must satisfy 0 <= low <= high <= 1")
	}
	if opt.Budget < 0 {
		opt.Budget = 0
	}
	if opt.Padding == 0 {
		opt.Padding = DefaultPadding
	}
	if opt.Decoder == nil {
		opt.Decoder = decode.New(decode.Options{})
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Streamer{
		queue:    keyheap.New[tier.Key, *task](64),
		tasks:    make(map[tier.Key]*task),
		entities: make(map[string]*entity),
		desire:   desire.New[tier.Key](1), // always used under mu
		resolver: tier.Resolver{CapRichest: opt.CapRichest},
		prio:     viewport.Prioritizer{Padding: math.Max(opt.Padding, 0)},
		opt:      opt,
		log:      opt.Logger.With("component", "streamer"),
	}
	// Count evictions for Stats while still forwarding to the caller's hook.
	userEvict := opt.OnEvict
	opt.OnEvict = func(k tier.Key, tex *Texture, reason EvictReason) {
		s.evicted++
		if userEvict != nil {
			userEvict(k, tex, reason)
		}
	}
	s.cache = newResources(opt)
	s.cond = sync.NewCond(&s.mu)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for i := 0; i < opt.Concurrency; i++ {
		s.group.Go(func() error { return s.worker(s.ctx) })
	}
	s.log.Debug("started", "workers", opt.Concurrency, "budget", opt.Budget)
	return s
}

// RequestTier asks for entity to be shown at tier want.
//
//   - AlreadySatisfied: the entity shows, or already waits for, the resolved
//     key. The pending ticket is returned if there is one.
//   - SwappedImmediately: the key was cached; the entity switched to it.
//   - Scheduled: the returned ticket settles when the decode finishes.
//   - Unavailable: unknown entity, no variant, or closed streamer.
//
// A request for a different key supersedes the entity's pending one, which
// settles with ErrCanceled.
func (s *Streamer) RequestTier(entityID string, want tier.Tier) (Outcome, *Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Unavailable, nil
	}
	src, ok := s.opt.Registry.Source(entityID)
	if !ok {
		return Unavailable, nil
	}
	key, eff, ok := s.resolver.Resolve(src, want)
	if !ok {
		return Unavailable, nil
	}

	e := s.entities[entityID]
	if e == nil {
		e = &entity{}
		s.entities[entityID] = e
	}
	if e.pending != nil {
		if e.pending.key == key {
			return AlreadySatisfied, e.pending
		}
		s.cancelLocked(e.pending, ErrCanceled)
	}
	if e.key == key {
		return AlreadySatisfied, nil
	}

	now := s.now()
	if _, hit := s.cache.adopt(key, now); hit {
		s.opt.Metrics.Hit()
		s.showLocked(e, key, eff, now)
		return SwappedImmediately, nil
	}
	s.opt.Metrics.Miss()

	t := newTicket(s, entityID, key, eff)
	e.pending = t
	s.desire.Increment(key)

	p := s.priorityLocked(s.view(), entityID)
	tk := s.tasks[key]
	switch {
	case tk == nil:
		tk = &task{key: key, state: taskQueued, enqueued: now}
		s.tasks[key] = tk
		s.queue.Push(key, tk, p)
		s.log.Debug("enqueued", "key", key, "priority", p)
		s.cond.Signal()
	case tk.state == taskQueued:
		// A task whose waiters all left keeps a stale priority; the newcomer
		// defines it.
		if it, ok := s.queue.Get(key); ok && (len(tk.waiters) == 0 || p < it.Priority) {
			s.queue.Update(key, p)
		}
	}
	tk.waiters = append(tk.waiters, t)
	s.publishQueueLocked()
	return Scheduled, t
}

// Release drops entity: its pending request is cancelled and its displayed
// texture loses a reference. Call it when an entity is hidden or destroyed.
func (s *Streamer) Release(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return
	}
	if e.pending != nil {
		s.cancelLocked(e.pending, ErrCanceled)
	}
	if e.key != tier.None {
		s.cache.release(e.key, s.now())
	}
	delete(s.entities, entityID)
}

// Texture returns what entity currently displays.
func (s *Streamer) Texture(entityID string) (*Texture, tier.Tier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok || e.key == tier.None {
		return nil, 0, false
	}
	n, ok := s.cache.m[e.key]
	if !ok {
		return nil, 0, false
	}
	return n.tex, e.tier, true
}

// RefreshPriorities re-samples the viewport and re-prioritizes every queued
// task as the most urgent of its waiters. Running tasks are unaffected.
// Call it after pan/zoom.
func (s *Streamer) RefreshPriorities() {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.view()
	for _, k := range s.queue.Keys() {
		tk := s.tasks[k]
		p := viewport.Far
		for _, w := range tk.waiters {
			p = math.Min(p, s.priorityLocked(view, w.entity))
		}
		s.queue.Update(k, p)
	}
}

// Purge evicts every unreferenced texture now, ignoring watermarks and grace.
func (s *Streamer) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.purge()
}

// Close stops the workers, fails pending requests with ErrClosed and drops
// every cached texture. It is safe to call more than once.
func (s *Streamer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for {
		it, ok := s.queue.PopMin()
		if !ok {
			break
		}
		delete(s.tasks, it.Key)
		s.rejectLocked(it.Value, ErrClosed)
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	err := s.group.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.clear()
	s.entities = make(map[string]*entity)
	s.publishQueueLocked()
	s.log.Debug("closed")
	return err
}

// ---- internals (mu held) ----

// showLocked switches e to key, which the caller has already adopted, and
// releases whatever e displayed before.
func (s *Streamer) showLocked(e *entity, key tier.Key, t tier.Tier, now int64) {
	if e.key != tier.None {
		s.cache.release(e.key, now)
	}
	e.key, e.tier = key, t
}

// cancelLocked withdraws a pending ticket: it leaves its task's waiter list,
// its desire is dropped exactly once, and it settles with err.
func (s *Streamer) cancelLocked(t *Ticket, err error) {
	if t.settled {
		return
	}
	if e := s.entities[t.entity]; e != nil && e.pending == t {
		e.pending = nil
	}
	if tk := s.tasks[t.key]; tk != nil {
		tk.detach(t)
	}
	s.desire.Decrement(t.key)
	t.settle(nil, err)
}

// rejectLocked settles every waiter of tk with err.
func (s *Streamer) rejectLocked(tk *task, err error) {
	for _, t := range tk.waiters {
		if e := s.entities[t.entity]; e != nil && e.pending == t {
			e.pending = nil
		}
		s.desire.Decrement(t.key)
		t.settle(nil, err)
	}
	tk.waiters = nil
}

func (s *Streamer) view() viewport.Rect {
	if s.opt.Viewport == nil {
		return viewport.Rect{}
	}
	return s.opt.Viewport.Visible()
}

func (s *Streamer) priorityLocked(view viewport.Rect, entityID string) float64 {
	b, ok := s.opt.Registry.Bounds(entityID)
	if !ok {
		return viewport.Far
	}
	return s.prio.Priority(view, b)
}

func (s *Streamer) publishQueueLocked() {
	s.opt.Metrics.Queue(s.queue.Len(), s.inFlight)
}

func (s *Streamer) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
