package utils

import (
	"errors"
	"fmt"
	"math"
)

var ErrEmptyVector = errors.New("empty vector")

// DimensionError reports two vectors that cannot be compared.
type DimensionError struct {
	Left, Right int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: %d vs %d", e.Left, e.Right)
}

// CosineSimilarity returns the cosine of the angle between a and b in one pass.
// A zero-magnitude vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, &DimensionError{Left: len(a), Right: len(b)}
	}
	var dot, normA, normB float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		normA += float64(x) * float64(x)
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// IsZeroVector reports whether every component is zero. Empty vectors count as zero.
func IsZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// ZeroVectors returns n all-zero vectors of the given dimension.
func ZeroVectors(n, dimension int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dimension)
	}
	return out
}
