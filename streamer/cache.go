package streamer

import "github.com/IvanBrykalov/tilestream/tier"

// resources is the reference-counted texture cache with byte accounting.
// It is not synchronized on its own: every method runs under Streamer.mu so
// that cache, queue and desire updates are observed atomically together.
type resources struct {
	m     map[tier.Key]*node
	head  *node // MRU
	tail  *node // LRU
	len   int
	bytes int64

	// Budget enforcement; see budget.go. budget == 0 disables it.
	budget int64
	high   int64
	low    int64
	grace  int64

	metrics Metrics
	onEvict func(tier.Key, *Texture, EvictReason)
}

func newResources(opt Options) *resources {
	r := &resources{
		m:       make(map[tier.Key]*node),
		budget:  opt.Budget,
		grace:   int64(opt.EvictionGrace),
		metrics: opt.Metrics,
		onEvict: opt.OnEvict,
	}
	if r.budget > 0 {
		r.high = int64(float64(r.budget) * opt.HighWatermark)
		r.low = int64(float64(r.budget) * opt.LowWatermark)
	}
	return r
}

// contains reports presence without touching recency.
func (r *resources) contains(k tier.Key) bool {
	_, ok := r.m[k]
	return ok
}

// refs returns the reference count of k (0 if absent).
func (r *resources) refs(k tier.Key) int {
	if n, ok := r.m[k]; ok {
		return n.refs
	}
	return 0
}

// adopt takes a reference on k and marks it most recently used.
func (r *resources) adopt(k tier.Key, now int64) (*Texture, bool) {
	n, ok := r.m[k]
	if !ok {
		return nil, false
	}
	n.refs++
	n.lastUsed = now
	r.moveToFront(n)
	return n.tex, true
}

// release drops a reference on k (floor 0). The entry stays resident and
// becomes an eviction candidate once unreferenced.
func (r *resources) release(k tier.Key, now int64) {
	n, ok := r.m[k]
	if !ok {
		return
	}
	if n.refs > 0 {
		n.refs--
	}
	n.lastUsed = now
	r.moveToFront(n)
}

// insert adds a freshly decoded texture holding refs references.
// An existing entry for k is replaced in place, keeping its references.
func (r *resources) insert(k tier.Key, tex *Texture, refs int, now int64) {
	if n, ok := r.m[k]; ok {
		r.bytes += tex.Bytes() - n.bytes
		n.tex, n.bytes = tex, tex.Bytes()
		n.refs += refs
		n.lastUsed = now
		r.moveToFront(n)
		return
	}
	n := &node{key: k, tex: tex, refs: refs, lastUsed: now, bytes: tex.Bytes()}
	r.m[k] = n
	r.insertFront(n)
}

// ---- intrusive list ----

// insertFront inserts n at MRU in O(1).
func (r *resources) insertFront(n *node) {
	n.prev = nil
	n.next = r.head
	if r.head != nil {
		r.head.prev = n
	}
	r.head = n
	if r.tail == nil {
		r.tail = n
	}
	r.len++
	r.bytes += n.bytes
}

// moveToFront promotes n to MRU in O(1).
func (r *resources) moveToFront(n *node) {
	if n == r.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if r.tail == n {
		r.tail = n.prev
	}
	n.prev = nil
	n.next = r.head
	if r.head != nil {
		r.head.prev = n
	}
	r.head = n
	if r.tail == nil {
		r.tail = n
	}
}

// removeNode unlinks n and subtracts its recorded size.
func (r *resources) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if r.head == n {
		r.head = n.next
	}
	if r.tail == n {
		r.tail = n.prev
	}
	n.prev, n.next = nil, nil
	delete(r.m, n.key)
	r.len--
	r.bytes -= n.bytes
	if r.bytes < 0 {
		r.bytes = 0
	}
}

// evictNode removes n and reports it to metrics and OnEvict.
func (r *resources) evictNode(n *node, reason EvictReason) {
	r.removeNode(n)
	r.metrics.Evict(reason)
	if cb := r.onEvict; cb != nil {
		cb(n.key, n.tex, reason)
	}
}
