package interfaces

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/model"
)

// ExampleLog defines the durable, append-only persistence of confirmed examples
type ExampleLog interface {
	// LoadExamples reads every persisted example in append order. A malformed
	// record fails the whole load with model.ErrParse.
	LoadExamples(ctx context.Context) ([]*model.Example, error)

	// AppendExample durably persists one example
	AppendExample(ctx context.Context, example *model.Example) error

	// ClearExamples erases all persisted examples
	ClearExamples(ctx context.Context) error
}
