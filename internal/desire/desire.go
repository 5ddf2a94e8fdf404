// Package desire counts, per resource key, how many live requesters are
// currently waiting for that key. Decode workers consult it right before
// starting I/O so that work nobody wants anymore is dropped.
package desire

import (
	"sync"

	"github.com/IvanBrykalov/tilestream/internal/util"
)

// Tracker is a sharded map of desire counts. Zero counts are never stored.
// All methods are safe for concurrent use. Callers that already serialize
// every access behind their own lock should use a single shard.
type Tracker[K util.Bytesish] struct {
	shards []*shard[K]
}

type shard[K util.Bytesish] struct {
	mu sync.Mutex
	m  map[string]int
}

// New returns a tracker split into n shards (rounded up to a power of two).
// n <= 0 picks util.ReasonableShardCount.
func New[K util.Bytesish](n int) *Tracker[K] {
	if n <= 0 {
		n = util.ReasonableShardCount()
	}
	n = int(util.NextPow2(uint64(n)))
	t := &Tracker[K]{shards: make([]*shard[K], n)}
	for i := range t.shards {
		t.shards[i] = &shard[K]{m: make(map[string]int)}
	}
	return t
}

func (t *Tracker[K]) shardFor(k K) *shard[K] {
	return t.shards[util.ShardIndex(util.Fnv64a(k), len(t.shards))]
}

// Increment records one more requester for k and returns the new count.
func (t *Tracker[K]) Increment(k K) int {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[string(k)]++
	return s.m[string(k)]
}

// Decrement drops one requester for k and returns the new count.
// It is a no-op when the count is already zero.
func (t *Tracker[K]) Decrement(k K) int {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[string(k)]
	if !ok {
		return 0
	}
	n--
	if n <= 0 {
		delete(s.m, string(k))
		return 0
	}
	s.m[string(k)] = n
	return n
}

// IsDesired reports whether anyone is still waiting for k.
func (t *Tracker[K]) IsDesired(k K) bool {
	return t.Count(k) > 0
}

// Count returns the current desire count for k.
func (t *Tracker[K]) Count(k K) int {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[string(k)]
}

// Len returns the number of keys with a non-zero count.
func (t *Tracker[K]) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.m)
		s.mu.Unlock()
	}
	return total
}
