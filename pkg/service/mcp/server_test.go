package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/service/mcp"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type mockPredictor struct {
	predictFunc func(ctx context.Context, text string) (*model.Result, error)
}

func (m *mockPredictor) Predict(ctx context.Context, text string) (*model.Result, error) {
	return m.predictFunc(ctx, text)
}

type mockCurator struct {
	stored []*model.Example
}

func (m *mockCurator) Remember(ctx context.Context, text, emotion, intent string) (*model.Example, error) {
	if !model.IntentLabels.Contains(intent) {
		return nil, errors.New("unknown intent label")
	}
	e := model.NewExample(text, emotion, intent, model.Tags{"action": string(model.ActionFromIntent(intent))}, []float32{1, 0})
	m.stored = append(m.stored, e)
	return e, nil
}

func (m *mockCurator) List(ctx context.Context) []*model.Example {
	return m.stored
}

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &mcpsdk.StreamableClientTransport{
		Endpoint: httpServer.URL,
	}, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text, result.IsError
}

func TestServerTools(t *testing.T) {
	predictor := &mockPredictor{
		predictFunc: func(ctx context.Context, text string) (*model.Result, error) {
			return &model.Result{
				Emotion: model.Prediction{Label: "joy", Confidence: 0.9, Source: model.SourceModelMemory},
				Intent:  model.Prediction{Label: "booking", Confidence: 0.72, Source: model.SourceModelMemory},
				Tags:    model.Tags{"action": "book", "amenity": "spa"},
			}, nil
		},
	}
	curator := &mockCurator{}
	session := connect(t, mcp.NewServer(predictor, curator, "test"))

	tools, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	gt.True(t, names["predict"])
	gt.True(t, names["remember"])
	gt.True(t, names["list_examples"])

	t.Run("predict", func(t *testing.T) {
		text, isErr := callText(t, session, "predict", map[string]any{"text": "Book a spa at 5pm"})
		gt.False(t, isErr)

		var got model.Result
		gt.NoError(t, json.Unmarshal([]byte(text), &got))
		gt.Equal(t, got.Intent.Label, "booking")
		gt.Equal(t, got.Intent.Source, model.SourceModelMemory)
		gt.Equal(t, got.Tags["amenity"], any("spa"))
	})

	t.Run("remember and list", func(t *testing.T) {
		_, isErr := callText(t, session, "remember", map[string]any{
			"text": "thanks!", "emotion": "joy", "intent": "feedback",
		})
		gt.False(t, isErr)
		gt.A(t, curator.stored).Length(1)

		text, isErr := callText(t, session, "list_examples", map[string]any{})
		gt.False(t, isErr)
		gt.S(t, text).Contains(`"text":"thanks!"`)
	})

	t.Run("remember rejects unknown label", func(t *testing.T) {
		text, isErr := callText(t, session, "remember", map[string]any{
			"text": "hi", "emotion": "joy", "intent": "weather",
		})
		gt.True(t, isErr)
		gt.S(t, text).Contains("unknown intent")
	})
}

func TestServerPredictFailure(t *testing.T) {
	predictor := &mockPredictor{
		predictFunc: func(ctx context.Context, text string) (*model.Result, error) {
			return nil, model.ErrOracle
		},
	}
	session := connect(t, mcp.NewServer(predictor, &mockCurator{}, "test"))

	text, isErr := callText(t, session, "predict", map[string]any{"text": "hello"})
	gt.True(t, isErr)
	gt.S(t, text).Contains("oracle unavailable")
}
