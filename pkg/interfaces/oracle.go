package interfaces

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/model"
)

// Classifier returns a probability distribution over the labels of one task
type Classifier interface {
	Classify(ctx context.Context, text string) (*model.Classification, error)
}

// FallbackOracle is the expensive single-label intent oracle used by the gated strategy
type FallbackOracle interface {
	ClassifyIntent(ctx context.Context, text string) (label string, confidence float64, err error)
}

// Embedder converts text into a unit-length vector of fixed dimension
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Tagger extracts free-form metadata for a text and its derived action
type Tagger interface {
	Tag(ctx context.Context, text string, action model.Action) (model.Tags, error)
}
