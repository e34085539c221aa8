package vectormath

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Normalize rescales raw into [0,1] given the observed min and max.
// Out-of-range inputs are clamped. When min == max every value in the set is
// identical, so 0.5 is returned as a neutral score instead of dividing by
// zero.
func Normalize(raw, min, max float64) float64 {
	if min == max {
		return 0.5
	}
	if raw < min {
		raw = min
	}
	if raw > max {
		raw = max
	}
	return (raw - min) / (max - min)
}

// ContentHash returns the SHA-256 hex digest of s. Used as a stable dedup
// key for result content.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Timed runs fn and returns its error together with the wall-clock duration.
func Timed(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}
