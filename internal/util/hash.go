// Package util contains internal helpers (hashing, sharding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// Bytesish is any string- or byte-slice-like key. Resource keys are named
// string types, so the constraint uses the approximation form.
type Bytesish interface {
	~string | ~[]byte
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Fnv64a hashes a string-like key with 64-bit FNV-1a without allocating.
func Fnv64a[K Bytesish](k K) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(k); i++ {
		h ^= uint64(k[i])
		h *= fnvPrime64
	}
	return h
}
