// Package vecmath provides the float32 vector kernels used by the index.
package vecmath

import (
	"errors"
	"math"
)

// ErrSizeMismatch is returned when two vectors have different lengths.
var ErrSizeMismatch = errors.New("vector sizes do not match")

// Dot computes the dot product of two equally sized vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude computes the Euclidean length of a vector.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace scales v to unit length. Returns false if v has zero
// magnitude, in which case v is left untouched.
func NormalizeL2InPlace(v []float32) bool {
	mag := Magnitude(v)
	if mag == 0 {
		return false
	}
	inv := 1 / mag
	for i := range v {
		v[i] *= inv
	}
	return true
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Zero-magnitude vectors yield a similarity of 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrSizeMismatch
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return Dot(a, b) / (magA * magB), nil
}

// CosineDistance computes 1 - cosine similarity.
func CosineDistance(a, b []float32) (float32, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// NormalizedCosineDistance computes 1 - dot(a, b). Both vectors must already
// be L2-normalized; the index normalizes on insert so queries reduce to a
// single dot product.
func NormalizedCosineDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrSizeMismatch
	}
	return 1 - Dot(a, b), nil
}
