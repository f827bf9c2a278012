package memory_test

import (
	"errors"
	"math"
	"testing"

	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestNormalize(t *testing.T) {
	v, err := memory.Normalize([]float32{3, 4})
	gt.NoError(t, err)
	gt.True(t, math.Abs(float64(v[0])-0.6) < 1e-6)
	gt.True(t, math.Abs(float64(v[1])-0.8) < 1e-6)
	gt.True(t, math.Abs(memory.Norm(v)-1) < 1e-6)

	_, err = memory.Normalize([]float32{0, 0})
	gt.True(t, errors.Is(err, model.ErrInvalidEmbedding))
}

func TestMetricsDisagreeInSense(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	gt.Equal(t, memory.Dot(a, a), 1.0)
	gt.Equal(t, memory.SquaredL2(a, a), 0.0)
	gt.Equal(t, memory.Dot(a, b), 0.0)
	gt.Equal(t, memory.SquaredL2(a, b), 2.0)
}
