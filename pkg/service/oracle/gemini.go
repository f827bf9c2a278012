package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiEmbedder produces unit-length embeddings with the Gemini embedding model
type GeminiEmbedder struct {
	client adapter.Gemini
}

func NewGeminiEmbedder(client adapter.Gemini) *GeminiEmbedder {
	return &GeminiEmbedder{client: client}
}

func (x *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := x.client.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}

	vec, err := memory.Normalize(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to normalize embedding")
	}
	return vec, nil
}

// GeminiClassifier asks Gemini for a probability over every label of one task
type GeminiClassifier struct {
	client adapter.Gemini
	task   model.Task
	config *genai.GenerateContentConfig
}

// NewGeminiClassifier creates a distribution classifier for task
func NewGeminiClassifier(client adapter.Gemini, task model.Task) (*GeminiClassifier, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	schema, err := toGenaiSchema(distributionSchema(task.Labels()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build response schema", goerr.V("task", task))
	}

	return &GeminiClassifier{
		client: client,
		task:   task,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(classifierInstruction(task), genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
			Temperature:       genai.Ptr[float32](0),
		},
	}, nil
}

func classifierInstruction(task model.Task) string {
	return fmt.Sprintf(
		"You classify guest messages sent to a hotel assistant by %s. "+
			"Assign a probability to every one of these labels: %s. "+
			"Probabilities must be between 0 and 1 and sum to 1.",
		task, strings.Join(task.Labels().Names(), ", "))
}

type scoresResponse struct {
	Scores []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

func (x *GeminiClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	var resp scoresResponse
	if err := generateJSON(ctx, x.client, x.config, text, &resp); err != nil {
		return nil, oracleError(err, "gemini classifier failed", goerr.V("task", x.task))
	}

	labels := make([]string, len(resp.Scores))
	scores := make([]float64, len(resp.Scores))
	for i, s := range resp.Scores {
		labels[i] = s.Label
		scores[i] = s.Score
	}
	return toDistribution(x.task.Labels(), labels, scores, nil)
}

// GeminiFallback asks Gemini for a single intent label with its confidence
type GeminiFallback struct {
	client adapter.Gemini
	config *genai.GenerateContentConfig
}

func NewGeminiFallback(client adapter.Gemini) (*GeminiFallback, error) {
	schema, err := toGenaiSchema(labelSchema("intent", model.IntentLabels))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build response schema")
	}

	return &GeminiFallback{
		client: client,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(fallbackInstruction(), genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
			Temperature:       genai.Ptr[float32](0),
		},
	}, nil
}

func fallbackInstruction() string {
	return "You classify the intent of guest messages sent to a hotel assistant. " +
		"Choose exactly one of: " + strings.Join(model.IntentLabels.Names(), ", ") + ". " +
		"Report your confidence between 0 and 1."
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (x *GeminiFallback) ClassifyIntent(ctx context.Context, text string) (string, float64, error) {
	var resp intentResponse
	if err := generateJSON(ctx, x.client, x.config, text, &resp); err != nil {
		return "", 0, oracleError(err, "gemini fallback failed")
	}
	return checkLabel(model.IntentLabels, resp.Intent, resp.Confidence)
}

func generateJSON(ctx context.Context, client adapter.Gemini, config *genai.GenerateContentConfig, text string, out any) error {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, config)
	if err != nil {
		return oracleError(err, "failed to generate content")
	}

	raw := responseText(resp)
	if raw == "" {
		return goerr.Wrap(model.ErrOracle, "empty response from gemini")
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return goerr.Wrap(model.ErrOracle, "failed to parse gemini response",
			goerr.V("response", raw), goerr.V("cause", err.Error()))
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
