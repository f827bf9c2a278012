package examples

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// List returns the persisted examples in append order
func (u *UseCase) List(ctx context.Context) []*model.Example {
	return u.store.Examples()
}

// Remember stores a human-confirmed example regardless of any confidence threshold
func (u *UseCase) Remember(ctx context.Context, text, emotion, intent string) (*model.Example, error) {
	if text == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "text is required")
	}
	if !model.EmotionLabels.Contains(emotion) {
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown emotion label",
			goerr.V("emotion", emotion), goerr.V("allowed", model.EmotionLabels.Names()))
	}
	if !model.IntentLabels.Contains(intent) {
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown intent label",
			goerr.V("intent", intent), goerr.V("allowed", model.IntentLabels.Names()))
	}

	vec, err := u.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}

	action := model.ActionFromIntent(intent)
	tags := model.Tags{"action": string(action)}
	if u.tagger != nil {
		t, err := u.tagger.Tag(ctx, text, action)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to tag text")
		}
		tags = t
	}

	example := model.NewExample(text, emotion, intent, tags, vec)
	if err := u.store.Append(ctx, example); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("example remembered", "id", example.ID, "emotion", emotion, "intent", intent)
	return example, nil
}

// Clear erases every persisted example. Seeds stay indexed.
func (u *UseCase) Clear(ctx context.Context) (int, error) {
	n := len(u.store.Examples())
	if err := u.store.Clear(ctx); err != nil {
		return 0, err
	}
	logging.From(ctx).Warn("memory cleared", "removed", n)
	return n, nil
}
