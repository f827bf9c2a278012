package predict

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// NearestFinder looks up the single closest labeled entry by squared L2 distance
type NearestFinder interface {
	Nearest(vec []float32, task model.Task) (memory.Neighbor, bool, error)
}

// Gate routes an intent request either to the nearest memory match or to the
// fallback oracle, depending on how close that match is.
type Gate struct {
	index     NearestFinder
	oracle    interfaces.FallbackOracle
	threshold float64
}

// NewGate creates a Gate. Matches with distance <= threshold are trusted.
func NewGate(index NearestFinder, oracle interfaces.FallbackOracle, threshold float64) *Gate {
	return &Gate{index: index, oracle: oracle, threshold: threshold}
}

// Route returns the intent prediction for text whose embedding is vec
func (g *Gate) Route(ctx context.Context, text string, vec []float32) (model.Prediction, error) {
	neighbor, found, err := g.index.Nearest(vec, model.TaskIntent)
	if err != nil {
		return model.Prediction{}, goerr.Wrap(err, "failed to find nearest example")
	}

	if found && neighbor.Distance <= g.threshold {
		logging.From(ctx).Debug("gate: nearest neighbor path",
			"distance", neighbor.Distance, "label", neighbor.Example.Intent)
		return model.Prediction{
			Label:      neighbor.Example.Intent,
			Confidence: 1.0,
			Source:     model.SourceVectorDB,
		}, nil
	}

	if g.oracle == nil {
		return model.Prediction{}, goerr.Wrap(model.ErrOracle, "no fallback oracle configured")
	}

	logging.From(ctx).Debug("gate: fallback path", "found", found, "distance", neighbor.Distance)
	label, confidence, err := g.oracle.ClassifyIntent(ctx, text)
	if err != nil {
		return model.Prediction{}, asOracleError(err, "fallback oracle failed")
	}
	if !model.IntentLabels.Contains(label) {
		return model.Prediction{}, goerr.Wrap(model.ErrOracle, "fallback oracle returned unknown label",
			goerr.V("label", label))
	}

	return model.Prediction{
		Label:      label,
		Confidence: confidence,
		Source:     model.SourceExternalOracle,
	}, nil
}
