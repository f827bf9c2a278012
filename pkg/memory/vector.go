package memory

import (
	"math"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// unitTolerance is the allowed deviation of an embedding's L2 norm from 1
const unitTolerance = 1e-3

// Dot returns the dot product of a and b. With unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// SquaredL2 returns the squared Euclidean distance between a and b. Smaller is more similar.
func SquaredL2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return s
}

// Norm returns the L2 norm of v
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize returns v scaled to unit length
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, goerr.Wrap(model.ErrInvalidEmbedding, "cannot normalize vector", goerr.V("norm", n))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// validateEmbedding checks dimension (when dim > 0) and unit length
func validateEmbedding(v []float32, dim int) error {
	if len(v) == 0 {
		return goerr.Wrap(model.ErrInvalidEmbedding, "embedding is empty")
	}
	if dim > 0 && len(v) != dim {
		return goerr.Wrap(model.ErrInvalidEmbedding, "dimension mismatch",
			goerr.V("expected", dim), goerr.V("actual", len(v)))
	}
	if n := Norm(v); math.Abs(n-1) > unitTolerance {
		return goerr.Wrap(model.ErrInvalidEmbedding, "embedding is not unit length", goerr.V("norm", n))
	}
	return nil
}
