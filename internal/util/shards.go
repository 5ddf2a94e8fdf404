package util

import "runtime"

// ReasonableShardCount picks a shard count for lock-split maps:
// nextPow2(2*GOMAXPROCS), clamped to [1..64]. Desire counters are tiny, so
// the ceiling is lower than a general-purpose cache would use.
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 64 {
		n = 64
	}
	return n
}

// ShardIndex maps a 64-bit hash to a shard index. The mask path is used for
// power-of-two counts; anything else falls back to modulo.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
