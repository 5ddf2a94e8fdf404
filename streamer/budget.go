package streamer

// enforce runs the budget enforcer. If resident bytes exceed the high
// watermark it walks from the LRU tail and evicts unreferenced entries that
// have been idle for at least the grace period, stopping at the low
// watermark or when no candidate is left. Referenced entries are never
// touched, whatever their age. Returns the number of evicted entries.
//
// Walking the recency list from the tail visits entries in last-used
// ascending order, so no sort is needed.
func (r *resources) enforce(now int64) int {
	defer func() { r.metrics.Size(r.len, r.bytes) }()
	if r.budget <= 0 || r.bytes <= r.high {
		return 0
	}
	evicted := 0
	for n := r.tail; n != nil && r.bytes > r.low; {
		prev := n.prev
		if r.evictable(n, now) {
			r.evictNode(n, EvictBudget)
			evicted++
		}
		n = prev
	}
	return evicted
}

func (r *resources) evictable(n *node, now int64) bool {
	return n.refs == 0 && now-n.lastUsed >= r.grace
}

// purge evicts every unreferenced entry, ignoring watermarks and grace.
func (r *resources) purge() int {
	evicted := 0
	for n := r.tail; n != nil; {
		prev := n.prev
		if n.refs == 0 {
			r.evictNode(n, EvictPurge)
			evicted++
		}
		n = prev
	}
	r.metrics.Size(r.len, r.bytes)
	return evicted
}

// clear drops everything, referenced or not. Used by Close.
func (r *resources) clear() {
	for n := r.tail; n != nil; {
		prev := n.prev
		r.evictNode(n, EvictClose)
		n = prev
	}
	r.metrics.Size(r.len, r.bytes)
}
