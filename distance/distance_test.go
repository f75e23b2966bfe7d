package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit-axes", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0}, float32(math.Sqrt(2))},
		{"query-near-vec1", []float32{1, 0.1, 0, 0}, []float32{1, 0, 0, 0}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Euclidean(tt.a, tt.b), 1e-5)
		})
	}
}

func TestEuclideanDimensionMismatchReturnsInf(t *testing.T) {
	got := Euclidean([]float32{1, 2}, []float32{1, 2, 3})
	require.True(t, math.IsInf(float64(got), 1))
}

func TestCosineIdenticalIsZero(t *testing.T) {
	got := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	assert.InDelta(t, 0, got, 1e-5)
}

func TestCosineOrthogonalIsOne(t *testing.T) {
	got := Cosine([]float32{1, 0}, []float32{0, 1})
	assert.InDelta(t, 1, got, 1e-5)
}

func TestCosineZeroNormReturnsOne(t *testing.T) {
	assert.Equal(t, float32(1), Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, float32(1), Cosine([]float32{1, 1}, []float32{0, 0}))
}

func TestCosineDimensionMismatchReturnsInf(t *testing.T) {
	got := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	require.True(t, math.IsInf(float64(got), 1))
}
