package oracle_test

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"google.golang.org/genai"
)

type mockGemini struct {
	adapter.Gemini
	generateFunc  func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	embeddingFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, contents, config)
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return m.embeddingFunc(ctx, text)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

type mockClaude struct {
	adapter.Claude
	completeFunc func(ctx context.Context, system, prompt string) (string, error)
}

func (m *mockClaude) Complete(ctx context.Context, system, prompt string) (string, error) {
	return m.completeFunc(ctx, system, prompt)
}
