package streamer

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/tilestream/tier"
	"github.com/IvanBrykalov/tilestream/viewport"
)

type fakeClock struct{ t atomic.Int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t.Load() }
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

// fakeRegistry maps entity IDs to sources and bounds.
type fakeRegistry struct {
	mu      sync.Mutex
	sources map[string]tier.Source
	bounds  map[string]viewport.Rect
}

func newRegistry() *fakeRegistry {
	return &fakeRegistry{sources: map[string]tier.Source{}, bounds: map[string]viewport.Rect{}}
}

func (r *fakeRegistry) Source(id string) (tier.Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	return s, ok
}

func (r *fakeRegistry) Bounds(id string) (viewport.Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bounds[id]
	return b, ok
}

// add registers a single-sided entity whose tiers map to "<key>@<tier>".
func (r *fakeRegistry) add(id string, v tier.Variants) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[id] = tier.Single(v)
}

func (r *fakeRegistry) place(id string, b viewport.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds[id] = b
}

// fakeFetcher returns "WxH" payloads from sizes, records every call, and can
// hold individual keys until released.
type fakeFetcher struct {
	mu      sync.Mutex
	sizes   map[tier.Key]string
	calls   map[tier.Key]int
	order   []tier.Key
	gates   map[tier.Key]chan struct{}
	errs    map[tier.Key]error
	started chan tier.Key

	cur, peak atomic.Int32
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		sizes:   map[tier.Key]string{},
		calls:   map[tier.Key]int{},
		gates:   map[tier.Key]chan struct{}{},
		errs:    map[tier.Key]error{},
		started: make(chan tier.Key, 1024),
	}
}

func (f *fakeFetcher) size(k tier.Key, w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[k] = fmt.Sprintf("%dx%d", w, h)
}

func (f *fakeFetcher) hold(k tier.Key) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[k] = ch
	return ch
}

func (f *fakeFetcher) fail(k tier.Key, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[k] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, k tier.Key) ([]byte, error) {
	n := f.cur.Add(1)
	defer f.cur.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[k]++
	f.order = append(f.order, k)
	gate := f.gates[k]
	err := f.errs[k]
	size, ok := f.sizes[k]
	f.mu.Unlock()
	select {
	case f.started <- k:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		size = "1x1"
	}
	return []byte(size), nil
}

func (f *fakeFetcher) callCount(k tier.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

func (f *fakeFetcher) fetchOrder() []tier.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tier.Key(nil), f.order...)
}

// sizeDecoder decodes "WxH" payloads into blank RGBA bitmaps.
var sizeDecoder = DecoderFunc(func(_ context.Context, _ tier.Key, data []byte) (image.Image, error) {
	var w, h int
	if _, err := fmt.Sscanf(string(data), "%dx%d", &w, &h); err != nil {
		return nil, fmt.Errorf("bad payload %q: %w", data, err)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
})

type harness struct {
	s   *Streamer
	reg *fakeRegistry
	f   *fakeFetcher
	clk *fakeClock
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{reg: newRegistry(), f: newFetcher(), clk: &fakeClock{}}
	opt := Options{
		Concurrency: 2,
		Fetcher:     h.f,
		Decoder:     sizeDecoder,
		Registry:    h.reg,
		Clock:       h.clk,
	}
	if mutate != nil {
		mutate(&opt)
	}
	h.s = New(opt)
	t.Cleanup(func() { _ = h.s.Close() })
	return h
}

func wait(t *testing.T, tk *Ticket) (*Texture, error) {
	t.Helper()
	require.NotNil(t, tk)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tex, err := tk.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "ticket for %s never settled", tk.Key())
	return tex, err
}

func waitStarted(t *testing.T, f *fakeFetcher, want tier.Key) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case k := <-f.started:
			if k == want {
				return
			}
		case <-timeout:
			t.Fatalf("fetch of %s never started", want)
		}
	}
}

// eventually polls cond until it holds or a deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msg)
}

// checkInvariants verifies, under the streamer lock, that every cache entry
// holds exactly one reference per entity displaying it and that desire
// counts match the tickets still attached to tasks.
func checkInvariants(t *testing.T, s *Streamer) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	shown := map[tier.Key]int{}
	for id, e := range s.entities {
		if e.key == tier.None {
			continue
		}
		shown[e.key]++
		require.True(t, s.cache.contains(e.key), "entity %s shows evicted key %s", id, e.key)
	}
	var bytes int64
	for k, n := range s.cache.m {
		require.Equal(t, shown[k], n.refs, "refs of %s", k)
		bytes += n.bytes
	}
	require.Equal(t, bytes, s.cache.bytes)
	require.Equal(t, len(s.cache.m), s.cache.len)

	desired := 0
	for k, tk := range s.tasks {
		require.Equal(t, len(tk.waiters), s.desire.Count(k), "desire of %s", k)
		if len(tk.waiters) > 0 {
			desired++
		}
	}
	require.Equal(t, desired, s.desire.Len())
}

// idle waits until nothing is queued or running.
func idle(t *testing.T, s *Streamer) {
	t.Helper()
	eventually(t, func() bool {
		st := s.Stats()
		return st.QueueDepth == 0 && st.InFlight == 0
	}, "streamer never went idle")
}

// movingView is a mutable viewport.Provider.
type movingView struct {
	mu sync.Mutex
	r  viewport.Rect
}

func (v *movingView) Visible() viewport.Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.r
}

func (v *movingView) set(r viewport.Rect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.r = r
}

// variants returns a full Low/Medium/High set keyed "<id>@L" etc.
func variants(id string) tier.Variants {
	return tier.Variants{tier.Low: id + "@L", tier.Medium: id + "@M", tier.High: id + "@H"}
}
