package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Predictor returns emotion and intent predictions for text
type Predictor interface {
	Predict(ctx context.Context, text string) (*model.Result, error)
}

// Curator stores human-confirmed examples
type Curator interface {
	Remember(ctx context.Context, text, emotion, intent string) (*model.Example, error)
	List(ctx context.Context) []*model.Example
}

// Server exposes the router as MCP tools
type Server struct {
	server    *mcp.Server
	predictor Predictor
	curator   Curator
}

type predictParams struct {
	Text string `json:"text" jsonschema:"Guest message to classify"`
}

type rememberParams struct {
	Text    string `json:"text" jsonschema:"Guest message"`
	Emotion string `json:"emotion" jsonschema:"Confirmed emotion label"`
	Intent  string `json:"intent" jsonschema:"Confirmed intent label"`
}

type listParams struct{}

// NewServer creates an MCP server with predict, remember and list_examples tools
func NewServer(predictor Predictor, curator Curator, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "emotent",
			Version: version,
		}, nil),
		predictor: predictor,
		curator:   curator,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "predict",
		Description: "Classify the emotion and intent of a hotel guest message and extract request tags",
	}, s.predict)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "remember",
		Description: "Store a confirmed example. emotion must be one of " + joinLabels(model.EmotionLabels) +
			"; intent must be one of " + joinLabels(model.IntentLabels),
	}, s.remember)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_examples",
		Description: "List stored examples",
	}, s.list)

	return s
}

// RunStdio serves MCP over stdin/stdout until ctx is done or the client disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Handler serves MCP over streamable HTTP
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) predict(ctx context.Context, req *mcp.CallToolRequest, params *predictParams) (*mcp.CallToolResult, any, error) {
	if params.Text == "" {
		return nil, nil, goerr.New("text is required")
	}

	result, err := s.predictor.Predict(ctx, params.Text)
	if err != nil {
		logging.From(ctx).Error("mcp predict failed", "error", err)
		return errorResult(err), nil, nil
	}
	return jsonResult(result)
}

func (s *Server) remember(ctx context.Context, req *mcp.CallToolRequest, params *rememberParams) (*mcp.CallToolResult, any, error) {
	example, err := s.curator.Remember(ctx, params.Text, params.Emotion, params.Intent)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(map[string]any{
		"id":      example.ID,
		"emotion": example.Emotion,
		"intent":  example.Intent,
		"tags":    example.Tags,
	})
}

func (s *Server) list(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	type item struct {
		ID      model.ExampleID `json:"id"`
		Text    string          `json:"text"`
		Emotion string          `json:"emotion"`
		Intent  string          `json:"intent"`
	}

	items := []item{}
	for _, e := range s.curator.List(ctx) {
		items = append(items, item{ID: e.ID, Text: e.Text, Emotion: e.Emotion, Intent: e.Intent})
	}
	return jsonResult(items)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}

func joinLabels(set *model.LabelSet) string {
	return strings.Join(set.Names(), ", ")
}
