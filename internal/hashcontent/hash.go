// Package hashcontent computes a stable, algorithm-tagged content
// fingerprint for file and chunk text.
package hashcontent

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a deterministic fingerprint of content, prefixed with the
// algorithm that produced it ("xxh64:" or "sha256:") so a store can detect
// an algorithm change and treat it as a hash mismatch. The fast 64-bit
// xxHash path is used unless it panics, in which case the 256-bit SHA-256
// fallback is used instead.
func Hash(content string) string {
	if sum, ok := fastHash(content); ok {
		return "xxh64:" + sum
	}
	return "sha256:" + strongHash(content)
}

// fastHash computes the 64-bit xxHash of content, recovering from any panic
// in the underlying library so callers always get a usable fingerprint.
func fastHash(content string) (sum string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	h := xxhash.Sum64String(content)
	return hex.EncodeToString(uint64ToBytes(h)), true
}

func strongHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
