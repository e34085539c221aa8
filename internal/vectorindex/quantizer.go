package vectorindex

import (
	"math"

	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// quantizeVector maps a float32 vector to symmetric int8 codes using a
// per-vector absolute-maximum scale: code = round(v / scale) with
// scale = absMax/127. A zero vector quantizes to all-zero codes with a zero
// scale.
func quantizeVector(v []float32) ([]int8, float32) {
	var absMax float32
	for _, x := range v {
		a := float32(math.Abs(float64(x)))
		if a > absMax {
			absMax = a
		}
	}
	codes := make([]int8, len(v))
	if absMax == 0 {
		return codes, 0
	}
	scale := absMax / 127.0
	for i, x := range v {
		q := math.Round(float64(x / scale))
		if q > 127 {
			q = 127
		} else if q < -127 {
			q = -127
		}
		codes[i] = int8(q)
	}
	return codes, scale
}

// quantizedQuery carries the pre-quantized query for the layer-0 beam.
type quantizedQuery struct {
	codes []int8
	scale float32
}

// quantizedDistance approximates the configured metric directly in code
// space. Both operands carry their own scale, so the int32 dot product is
// rescaled by the product of the two scales.
func quantizedDistance(metric vectormath.Metric, q quantizedQuery, n *node) float64 {
	switch metric {
	case vectormath.MetricEuclidean:
		var sum float64
		for i := range q.codes {
			d := float64(q.codes[i])*float64(q.scale) - float64(n.codes[i])*float64(n.scale)
			sum += d * d
		}
		return sum
	default:
		var dot int32
		for i := range q.codes {
			dot += int32(q.codes[i]) * int32(n.codes[i])
		}
		scaled := float64(dot) * float64(q.scale) * float64(n.scale)
		if metric == vectormath.MetricDot {
			return -scaled
		}
		// Cosine: stored vectors are L2-normalized on insert, so the
		// rescaled dot product approximates the cosine similarity.
		d := 1.0 - scaled
		if d < 0 {
			d = 0
		} else if d > 2 {
			d = 2
		}
		return d
	}
}
