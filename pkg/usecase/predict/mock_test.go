package predict_test

import (
	"context"
	"math"

	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
)

type mockEmbedder struct {
	interfaces.Embedder
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

type mockClassifier struct {
	interfaces.Classifier
	classifyFunc func(ctx context.Context, text string) (*model.Classification, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	return m.classifyFunc(ctx, text)
}

type mockFallback struct {
	interfaces.FallbackOracle
	calls    int
	classify func(ctx context.Context, text string) (string, float64, error)
}

func (m *mockFallback) ClassifyIntent(ctx context.Context, text string) (string, float64, error) {
	m.calls++
	return m.classify(ctx, text)
}

type mockTagger struct {
	interfaces.Tagger
	tagFunc func(ctx context.Context, text string, action model.Action) (model.Tags, error)
}

func (m *mockTagger) Tag(ctx context.Context, text string, action model.Action) (model.Tags, error) {
	return m.tagFunc(ctx, text, action)
}

type mockNearest struct {
	neighbor memory.Neighbor
	found    bool
}

func (m *mockNearest) Nearest(vec []float32, task model.Task) (memory.Neighbor, bool, error) {
	return m.neighbor, m.found, nil
}

type failingLog struct {
	interfaces.ExampleLog
	appendFunc func(ctx context.Context, e *model.Example) error
}

func (m *failingLog) AppendExample(ctx context.Context, e *model.Example) error {
	return m.appendFunc(ctx, e)
}

// unit returns the 2-d unit vector at angle rad
func unit(rad float64) []float32 {
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func fixedEmbedder(vec []float32) *mockEmbedder {
	return &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return vec, nil
		},
	}
}

func fixedClassifier(labels *model.LabelSet, m map[string]float64) *mockClassifier {
	dist := model.DistributionFrom(labels, m)
	label, conf, _ := dist.Top()
	return &mockClassifier{
		classifyFunc: func(ctx context.Context, text string) (*model.Classification, error) {
			return &model.Classification{Label: label, Confidence: conf, Distribution: dist}, nil
		},
	}
}
