package vectormath

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: 2},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSquaredEuclideanDistance(t *testing.T) {
	got, err := SquaredEuclideanDistance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, got, 1e-9)
}

func TestNegativeDotDistance(t *testing.T) {
	got, err := NegativeDotDistance([]float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, -11.0, got, 1e-9)
}

func TestDistance_LengthMismatch(t *testing.T) {
	for _, fn := range []DistanceFunc{CosineDistance, SquaredEuclideanDistance, NegativeDotDistance} {
		_, err := fn([]float32{1}, []float32{1, 2})
		var lm ErrLengthMismatch
		require.True(t, errors.As(err, &lm))
		assert.Equal(t, 1, lm.A)
		assert.Equal(t, 2, lm.B)
	}
}

func TestForMetric(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricDot} {
		fn, err := ForMetric(m)
		require.NoError(t, err)
		require.NotNil(t, fn)
	}

	_, err := ForMetric(Metric("manhattan"))
	assert.Error(t, err)
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	// Zero vector stays untouched
	z := []float32{0, 0}
	NormalizeL2(z)
	assert.Equal(t, []float32{0, 0}, z)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		raw, min, max float64
		want          float64
	}{
		{name: "midpoint", raw: 5, min: 0, max: 10, want: 0.5},
		{name: "at min", raw: 0, min: 0, max: 10, want: 0},
		{name: "at max", raw: 10, min: 0, max: 10, want: 1},
		{name: "clamp below", raw: -5, min: 0, max: 10, want: 0},
		{name: "clamp above", raw: 15, min: 0, max: 10, want: 1},
		{name: "degenerate min==max", raw: 7, min: 7, max: 7, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Normalize(tt.raw, tt.min, tt.max), 1e-12)
		})
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	c := ContentHash("world")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
}

func TestTimed(t *testing.T) {
	d, err := Timed(func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)

	sentinel := errors.New("boom")
	_, err = Timed(func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}
