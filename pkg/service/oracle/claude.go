package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ClaudeFallback asks Claude for a single intent label with its confidence
type ClaudeFallback struct {
	client adapter.Claude
}

func NewClaudeFallback(client adapter.Claude) *ClaudeFallback {
	return &ClaudeFallback{client: client}
}

const claudeInstruction = `You classify the intent of guest messages sent to a hotel assistant.
Reply with only a JSON object {"intent": <label>, "confidence": <number between 0 and 1>}.
The label must be one of: `

func (x *ClaudeFallback) ClassifyIntent(ctx context.Context, text string) (string, float64, error) {
	reply, err := x.client.Complete(ctx, claudeInstruction+strings.Join(model.IntentLabels.Names(), ", "), text)
	if err != nil {
		return "", 0, oracleError(err, "claude fallback failed")
	}

	raw := extractJSONObject(reply)
	if raw == "" {
		return "", 0, goerr.Wrap(model.ErrOracle, "no JSON object in claude reply", goerr.V("reply", reply))
	}

	var resp intentResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", 0, goerr.Wrap(model.ErrOracle, "failed to parse claude reply",
			goerr.V("reply", reply), goerr.V("cause", err.Error()))
	}
	return checkLabel(model.IntentLabels, resp.Intent, resp.Confidence)
}

// extractJSONObject returns the outermost {...} of s, tolerating code fences
// and prose around it.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
