package util

import (
	"crypto/sha256"
	"encoding/binary"
)

// Hash64 returns a stable 64-bit hash of s, used for partition assignment
// and rendezvous scoring. sha256 keeps the distribution uniform and the
// value identical across nodes and restarts.
func Hash64(s string) uint64 {
	sum := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}
