// Package vectormath provides the pure numeric helpers shared by the vector
// index and the fusion scorer: distance metrics, score normalization,
// content hashing, and timed execution.
package vectormath

import (
	"fmt"
	"math"
)

// Metric identifies a vector distance metric.
type Metric string

const (
	// MetricCosine is cosine distance (1 - cosine similarity).
	// Vectors are expected to be L2-normalized by the caller.
	MetricCosine Metric = "cosine"
	// MetricEuclidean is squared euclidean distance. Squared avoids the
	// sqrt; ordering is identical to true euclidean.
	MetricEuclidean Metric = "euclidean"
	// MetricDot is negative dot product, so that smaller is closer.
	MetricDot Metric = "dot"
)

// DistanceFunc computes the distance between two equal-length vectors.
// Smaller values mean closer for every metric.
type DistanceFunc func(a, b []float32) (float64, error)

// ErrLengthMismatch is returned when two vectors differ in length.
type ErrLengthMismatch struct {
	A, B int
}

func (e ErrLengthMismatch) Error() string {
	return fmt.Sprintf("vector length mismatch: %d vs %d", e.A, e.B)
}

// ForMetric returns the distance function for a metric.
func ForMetric(m Metric) (DistanceFunc, error) {
	switch m {
	case MetricCosine:
		return CosineDistance, nil
	case MetricEuclidean:
		return SquaredEuclideanDistance, nil
	case MetricDot:
		return NegativeDotDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric %q", m)
	}
}

// CosineDistance returns 1 - cos(a, b). For unit-length inputs this reduces
// to 1 - dot(a, b); non-normalized inputs are handled by dividing by the
// norms.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch{A: len(a), B: len(b)}
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1.0 {
		sim = 1.0
	}
	if sim < -1.0 {
		sim = -1.0
	}
	return 1.0 - sim, nil
}

// SquaredEuclideanDistance returns sum((a_i - b_i)^2).
func SquaredEuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch{A: len(a), B: len(b)}
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

// NegativeDotDistance returns -dot(a, b). Minimizing -dot maximizes dot.
func NegativeDotDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch{A: len(a), B: len(b)}
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return -dot, nil
}

// NormalizeL2 scales v to unit length in place. Zero vectors are left
// unchanged.
func NormalizeL2(v []float32) {
	var normSq float32
	for _, val := range v {
		normSq += val * val
	}
	if normSq > 0 {
		inv := 1.0 / float32(math.Sqrt(float64(normSq)))
		for i := range v {
			v[i] *= inv
		}
	}
}
