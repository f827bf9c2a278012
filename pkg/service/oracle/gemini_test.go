package oracle_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/service/oracle"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestGeminiEmbedderNormalizes(t *testing.T) {
	client := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{3, 4}, nil
		},
	}

	vec, err := oracle.NewGeminiEmbedder(client).Embed(context.Background(), "hello")
	gt.NoError(t, err)
	gt.True(t, math.Abs(memory.Norm(vec)-1) < 1e-6)
	gt.True(t, math.Abs(float64(vec[0])-0.6) < 1e-6)
}

func TestGeminiEmbedderZeroVector(t *testing.T) {
	client := &mockGemini{
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0, 0, 0}, nil
		},
	}

	_, err := oracle.NewGeminiEmbedder(client).Embed(context.Background(), "hello")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidEmbedding))
}

func TestGeminiClassifier(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	var gotText string
	client := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			gotText = contents[0].Parts[0].Text
			return textResponse(`{"scores":[
				{"label":"booking","score":0.6},
				{"label":"hotel_info","score":0.3},
				{"label":"weather","score":0.1}
			]}`), nil
		},
	}

	classifier, err := oracle.NewGeminiClassifier(client, model.TaskIntent)
	gt.NoError(t, err)

	cls, err := classifier.Classify(context.Background(), "Book a spa at 5pm")
	gt.NoError(t, err)
	gt.Equal(t, gotText, "Book a spa at 5pm")

	// weather is outside the label set; its mass is dropped, not redistributed
	gt.Equal(t, cls.Label, "booking")
	gt.True(t, math.Abs(cls.Confidence-0.6) < 1e-9)
	gt.True(t, math.Abs(cls.Distribution.Sum()-0.9) < 1e-9)
	gt.Equal(t, cls.Distribution.Weight("weather"), 0.0)

	gt.Equal(t, gotConfig.ResponseMIMEType, "application/json")
	gt.NotNil(t, gotConfig.ResponseSchema)
	items := gotConfig.ResponseSchema.Properties["scores"].Items
	gt.Equal(t, items.Properties["label"].Enum, model.IntentLabels.Names())
}

func TestGeminiClassifierErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		client := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("quota exceeded")
			},
		}
		classifier, err := oracle.NewGeminiClassifier(client, model.TaskEmotion)
		gt.NoError(t, err)

		_, err = classifier.Classify(context.Background(), "hi")
		gt.True(t, errors.Is(err, model.ErrOracle))
	})

	t.Run("broken json", func(t *testing.T) {
		client := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse(`{"scores": [`), nil
			},
		}
		classifier, err := oracle.NewGeminiClassifier(client, model.TaskEmotion)
		gt.NoError(t, err)

		_, err = classifier.Classify(context.Background(), "hi")
		gt.True(t, errors.Is(err, model.ErrOracle))
	})

	t.Run("empty candidates", func(t *testing.T) {
		client := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			},
		}
		classifier, err := oracle.NewGeminiClassifier(client, model.TaskEmotion)
		gt.NoError(t, err)

		_, err = classifier.Classify(context.Background(), "hi")
		gt.True(t, errors.Is(err, model.ErrOracle))
	})

	t.Run("invalid task", func(t *testing.T) {
		_, err := oracle.NewGeminiClassifier(&mockGemini{}, model.Task("topic"))
		gt.Error(t, err)
	})
}

func TestGeminiFallback(t *testing.T) {
	reply := `{"intent":"Hotel_Info","confidence":0.83}`
	client := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(reply), nil
		},
	}

	fallback, err := oracle.NewGeminiFallback(client)
	gt.NoError(t, err)

	label, conf, err := fallback.ClassifyIntent(context.Background(), "what time is breakfast?")
	gt.NoError(t, err)
	gt.Equal(t, label, "hotel_info")
	gt.Equal(t, conf, 0.83)

	reply = `{"intent":"smalltalk","confidence":0.9}`
	_, _, err = fallback.ClassifyIntent(context.Background(), "hey")
	gt.True(t, errors.Is(err, model.ErrOracle))
}

func TestGeminiOracleLive(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	classifier, err := oracle.NewGeminiClassifier(client, model.TaskIntent)
	gt.NoError(t, err)

	cls, err := classifier.Classify(ctx, "I want to book a massage at the spa tomorrow at 5pm")
	gt.NoError(t, err)
	gt.Equal(t, cls.Label, "booking")
}
