package predict

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
)

// WarningHandler receives failures that must not reach the caller, such as a
// failed feedback write.
type WarningHandler func(ctx context.Context, msg string, err error)

func logWarning(ctx context.Context, msg string, err error) {
	logging.Component(ctx, "predict").Warn(msg, "error", err)
}

// confident reports whether both predictions clear the store threshold
func (u *UseCase) confident(result *model.Result) bool {
	return result.Emotion.Confidence >= u.params.StoreThreshold &&
		result.Intent.Confidence >= u.params.StoreThreshold
}

// writeBack appends the prediction as a new example when auto-store is enabled
// and both confidences are high enough. Answers derived from memory alone are
// never stored back. Errors go to the warning handler only.
func (u *UseCase) writeBack(ctx context.Context, text string, vec []float32, result *model.Result) bool {
	if !u.params.AutoStore || !u.confident(result) {
		return false
	}
	if result.Emotion.Source == model.SourceDegraded || result.Intent.Source == model.SourceDegraded {
		logging.From(ctx).Debug("skip storing degraded prediction")
		return false
	}

	example := model.NewExample(text, result.Emotion.Label, result.Intent.Label, result.Tags, vec)
	if err := u.memory.Append(ctx, example); err != nil {
		u.onWarning(ctx, "failed to store confident prediction", err)
		return false
	}

	logging.From(ctx).Debug("stored confident prediction",
		"id", example.ID, "emotion", example.Emotion, "intent", example.Intent)
	return true
}
