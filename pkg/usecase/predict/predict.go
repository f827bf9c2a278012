package predict

import (
	"context"
	"errors"

	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Memory is the part of the example store used by the router
type Memory interface {
	NearestFinder
	LabelDistribution(task model.Task, vec []float32, k int) (model.Distribution, error)
	Append(ctx context.Context, example *model.Example) error
}

var _ Memory = (*memory.Store)(nil)

// UseCase is the ensemble router. It combines external classifiers with the
// example memory and writes confident answers back into that memory.
type UseCase struct {
	memory   Memory
	embedder interfaces.Embedder
	emotion  interfaces.Classifier
	intent   interfaces.Classifier

	fallback  interfaces.FallbackOracle
	tagger    interfaces.Tagger
	params    Params
	onWarning WarningHandler
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithParams replaces the routing parameters
func WithParams(p Params) Option {
	return func(uc *UseCase) {
		uc.params = p
	}
}

// WithFallback sets the oracle used by the gated intent strategy
func WithFallback(oracle interfaces.FallbackOracle) Option {
	return func(uc *UseCase) {
		uc.fallback = oracle
	}
}

// WithTagger sets the tag enrichment step
func WithTagger(tagger interfaces.Tagger) Option {
	return func(uc *UseCase) {
		uc.tagger = tagger
	}
}

// WithWarningHandler overrides where swallowed failures are reported
func WithWarningHandler(h WarningHandler) Option {
	return func(uc *UseCase) {
		uc.onWarning = h
	}
}

// New creates the ensemble router. The intent classifier is not called when the
// gated strategy is selected and may be nil in that case.
func New(
	mem Memory,
	embedder interfaces.Embedder,
	emotion interfaces.Classifier,
	intent interfaces.Classifier,
	opts ...Option,
) (*UseCase, error) {
	uc := &UseCase{
		memory:    mem,
		embedder:  embedder,
		emotion:   emotion,
		intent:    intent,
		params:    DefaultParams(),
		onWarning: logWarning,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if err := uc.params.Validate(); err != nil {
		return nil, err
	}
	if uc.params.Strategy == StrategyBlend && uc.intent == nil {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "intent classifier is required for blend strategy")
	}
	if uc.params.Strategy == StrategyGated && uc.fallback == nil {
		return nil, goerr.Wrap(model.ErrInvalidConfig, "fallback oracle is required for gated strategy")
	}

	return uc, nil
}

// Params returns the active routing parameters
func (u *UseCase) Params() Params {
	return u.params
}

type classified struct {
	cls *model.Classification
	err error
}

// Predict returns emotion and intent predictions with provenance for text.
// It fails only when the embedding cannot be computed or no source of evidence
// is left for a task.
func (u *UseCase) Predict(ctx context.Context, text string) (*model.Result, error) {
	var (
		vec     []float32
		emotion classified
		intent  classified
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := u.embedder.Embed(egCtx, text)
		if err != nil {
			return goerr.Wrap(err, "failed to embed text")
		}
		vec = v
		return nil
	})
	eg.Go(func() error {
		emotion = u.classify(egCtx, u.emotion, text)
		return nil
	})
	if u.params.Strategy == StrategyBlend {
		eg.Go(func() error {
			intent = u.classify(egCtx, u.intent, text)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &model.Result{}
	var err error

	result.Emotion, err = u.blendTask(ctx, model.TaskEmotion, u.params.AlphaEmotion, vec, emotion)
	if err != nil {
		return nil, err
	}

	switch u.params.Strategy {
	case StrategyGated:
		result.Intent, err = u.gatedIntent(ctx, text, vec)
	default:
		result.Intent, err = u.blendTask(ctx, model.TaskIntent, u.params.AlphaIntent, vec, intent)
	}
	if err != nil {
		return nil, err
	}

	result.Tags = u.tag(ctx, text, model.ActionFromIntent(result.Intent.Label))

	logging.From(ctx).Info("predicted",
		"emotion", result.Emotion.Label,
		"emotion_confidence", result.Emotion.Confidence,
		"emotion_source", result.Emotion.Source,
		"intent", result.Intent.Label,
		"intent_confidence", result.Intent.Confidence,
		"intent_source", result.Intent.Source,
	)

	u.writeBack(ctx, text, vec, result)
	return result, nil
}

func (u *UseCase) oracleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.params.OracleTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.params.OracleTimeout)
}

func (u *UseCase) classify(ctx context.Context, c interfaces.Classifier, text string) classified {
	ctx, cancel := u.oracleContext(ctx)
	defer cancel()

	cls, err := c.Classify(ctx, text)
	if err != nil {
		return classified{err: asOracleError(err, "classifier failed")}
	}
	if cls == nil {
		return classified{err: goerr.Wrap(model.ErrOracle, "classifier returned no result")}
	}
	return classified{cls: cls}
}

// blendTask mixes the classifier distribution with the memory distribution. A
// failed classifier degrades to memory alone.
func (u *UseCase) blendTask(ctx context.Context, task model.Task, alpha float64, vec []float32, c classified) (model.Prediction, error) {
	memDist, err := u.memory.LabelDistribution(task, vec, u.params.K)
	if err != nil {
		return model.Prediction{}, goerr.Wrap(err, "failed to estimate label distribution", goerr.V("task", task))
	}

	if c.err != nil {
		label, weight, ok := memDist.Normalize().Top()
		if !ok {
			return model.Prediction{}, goerr.Wrap(c.err, "no memory to fall back on", goerr.V("task", task))
		}
		u.onWarning(ctx, "classifier unavailable, answering from memory", c.err)
		return model.Prediction{Label: label, Confidence: weight, Source: model.SourceDegraded}, nil
	}

	if label, weight, ok := Blend(c.cls.Distribution, memDist, alpha).Top(); ok {
		return model.Prediction{Label: label, Confidence: weight, Source: model.SourceModelMemory}, nil
	}

	if c.cls.Label != "" {
		return model.Prediction{Label: c.cls.Label, Confidence: c.cls.Confidence, Source: model.SourceModel}, nil
	}

	return model.Prediction{}, goerr.Wrap(model.ErrNoEvidence, "neither classifier nor memory produced a label",
		goerr.V("task", task))
}

// gatedIntent runs the gate. A failed fallback oracle degrades to the memory
// distribution like a failed classifier does in blendTask.
func (u *UseCase) gatedIntent(ctx context.Context, text string, vec []float32) (model.Prediction, error) {
	oracleCtx, cancel := u.oracleContext(ctx)
	defer cancel()

	pred, err := NewGate(u.memory, u.fallback, u.params.DistanceThreshold).Route(oracleCtx, text, vec)
	if err == nil || !errors.Is(err, model.ErrOracle) {
		return pred, err
	}

	memDist, distErr := u.memory.LabelDistribution(model.TaskIntent, vec, u.params.K)
	if distErr != nil {
		return model.Prediction{}, goerr.Wrap(distErr, "failed to estimate label distribution",
			goerr.V("task", model.TaskIntent))
	}
	label, weight, ok := memDist.Normalize().Top()
	if !ok {
		return model.Prediction{}, goerr.Wrap(err, "no memory to fall back on", goerr.V("task", model.TaskIntent))
	}

	u.onWarning(ctx, "fallback oracle unavailable, answering from memory", err)
	return model.Prediction{Label: label, Confidence: weight, Source: model.SourceDegraded}, nil
}

func (u *UseCase) tag(ctx context.Context, text string, action model.Action) model.Tags {
	if u.tagger == nil {
		return model.Tags{"action": string(action)}
	}

	tags, err := u.tagger.Tag(ctx, text, action)
	if err != nil {
		u.onWarning(ctx, "failed to tag text", err)
		return model.Tags{"action": string(action)}
	}
	if tags == nil {
		tags = model.Tags{}
	}
	if _, ok := tags["action"]; !ok {
		tags["action"] = string(action)
	}
	return tags
}

func asOracleError(err error, msg string) error {
	if errors.Is(err, model.ErrOracle) {
		return goerr.Wrap(err, msg)
	}
	return goerr.Wrap(model.ErrOracle, msg, goerr.V("cause", err.Error()))
}
