// Package keyheap implements a keyed binary min-heap.
//
// Items are ordered by Priority ascending, then by Seq ascending. Seq is the
// push order, so equally urgent items come out FIFO and nothing starves.
// A key→index map gives O(1) lookup; Push, PopMin, Update and Remove are
// O(log n) and touch only the affected path.
//
// The heap is not safe for concurrent use; callers guard it with their own
// lock.
package keyheap

// Item is one heap element.
type Item[K comparable, V any] struct {
	Key      K
	Value    V
	Priority float64
	Seq      uint64
}

// Heap is a keyed min-heap. The zero value is ready to use.
type Heap[K comparable, V any] struct {
	items []*Item[K, V]
	index map[K]int
	seq   uint64
}

// New returns an empty heap with room for capacity items.
func New[K comparable, V any](capacity int) *Heap[K, V] {
	return &Heap[K, V]{
		items: make([]*Item[K, V], 0, capacity),
		index: make(map[K]int, capacity),
	}
}

// Len returns the number of queued items.
func (h *Heap[K, V]) Len() int { return len(h.items) }

// Contains reports whether key is queued.
func (h *Heap[K, V]) Contains(key K) bool {
	_, ok := h.index[key]
	return ok
}

// Get returns a copy of the queued item for key.
func (h *Heap[K, V]) Get(key K) (Item[K, V], bool) {
	i, ok := h.index[key]
	if !ok {
		return Item[K, V]{}, false
	}
	return *h.items[i], true
}

// Push queues value under key. It returns false, leaving the heap untouched,
// if key is already queued.
func (h *Heap[K, V]) Push(key K, value V, priority float64) bool {
	if h.index == nil {
		h.index = make(map[K]int)
	}
	if _, ok := h.index[key]; ok {
		return false
	}
	h.seq++
	it := &Item[K, V]{Key: key, Value: value, Priority: priority, Seq: h.seq}
	h.items = append(h.items, it)
	i := len(h.items) - 1
	h.index[key] = i
	h.up(i)
	return true
}

// Peek returns the most urgent item without removing it.
func (h *Heap[K, V]) Peek() (Item[K, V], bool) {
	if len(h.items) == 0 {
		return Item[K, V]{}, false
	}
	return *h.items[0], true
}

// PopMin removes and returns the most urgent item.
func (h *Heap[K, V]) PopMin() (Item[K, V], bool) {
	if len(h.items) == 0 {
		return Item[K, V]{}, false
	}
	return h.removeAt(0), true
}

// Update changes the priority of key and restores heap order along the
// affected path only. It is a no-op (returning false) if key is absent.
// Seq is kept, so an item keeps its FIFO position among equals.
func (h *Heap[K, V]) Update(key K, priority float64) bool {
	i, ok := h.index[key]
	if !ok {
		return false
	}
	old := h.items[i].Priority
	h.items[i].Priority = priority
	switch {
	case priority < old:
		h.up(i)
	case priority > old:
		h.down(i)
	}
	return true
}

// Remove deletes key from the heap.
func (h *Heap[K, V]) Remove(key K) (Item[K, V], bool) {
	i, ok := h.index[key]
	if !ok {
		return Item[K, V]{}, false
	}
	return h.removeAt(i), true
}

// Keys returns the queued keys in heap (not priority) order.
func (h *Heap[K, V]) Keys() []K {
	out := make([]K, len(h.items))
	for i, it := range h.items {
		out[i] = it.Key
	}
	return out
}

// ---- internals ----

// removeAt swaps slot i with the last slot, truncates, then re-heapifies
// whatever landed in slot i.
func (h *Heap[K, V]) removeAt(i int) Item[K, V] {
	last := len(h.items) - 1
	it := h.items[i]
	if i != last {
		h.swap(i, last)
	}
	h.items[last] = nil
	h.items = h.items[:last]
	delete(h.index, it.Key)
	if i < len(h.items) {
		if !h.up(i) {
			h.down(i)
		}
	}
	return *it
}

func (h *Heap[K, V]) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Seq < b.Seq
}

func (h *Heap[K, V]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].Key] = i
	h.index[h.items[j].Key] = j
}

// up sifts slot i toward the root and reports whether it moved.
func (h *Heap[K, V]) up(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *Heap[K, V]) down(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		m := l
		if r := l + 1; r < n && h.less(r, l) {
			m = r
		}
		if !h.less(m, i) {
			return
		}
		h.swap(i, m)
		i = m
	}
}
