// Package server is the HTTP surface of the router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Predictor returns emotion and intent predictions for text
type Predictor interface {
	Predict(ctx context.Context, text string) (*model.Result, error)
}

// Curator manages stored examples
type Curator interface {
	Remember(ctx context.Context, text, emotion, intent string) (*model.Example, error)
	List(ctx context.Context) []*model.Example
	Clear(ctx context.Context) (int, error)
}

type Server struct {
	mux       *http.ServeMux
	predictor Predictor
	curator   Curator
}

type Option func(*Server)

// WithMCP mounts an MCP streamable HTTP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mux.Handle("/mcp", h)
	}
}

func New(predictor Predictor, curator Curator, opts ...Option) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		predictor: predictor,
		curator:   curator,
	}

	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("POST /examples", s.handleRemember)
	s.mux.HandleFunc("GET /examples", s.handleList)
	s.mux.HandleFunc("DELETE /examples", s.handleClear)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP attaches a request-scoped logger and dispatches the request
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context()).With(
		"request_id", uuid.NewString(),
		"method", r.Method,
		"path", r.URL.Path,
	)
	ctx := logging.With(r.Context(), logger)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

type predictRequest struct {
	Text string `json:"text"`
}

type rememberRequest struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
	Intent  string `json:"intent"`
}

type exampleResponse struct {
	ID      model.ExampleID `json:"id"`
	Text    string          `json:"text"`
	Emotion string          `json:"emotion"`
	Intent  string          `json:"intent"`
	Tags    model.Tags      `json:"tags"`
	AddedAt string          `json:"added_at"`
}

func toExampleResponse(e *model.Example) exampleResponse {
	tags := e.Tags
	if tags == nil {
		tags = model.Tags{}
	}
	return exampleResponse{
		ID:      e.ID,
		Text:    e.Text,
		Emotion: e.Emotion,
		Intent:  e.Intent,
		Tags:    tags,
		AddedAt: e.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Text == "" {
		writeError(r.Context(), w, goerr.Wrap(model.ErrInvalidInput, "text is required"))
		return
	}

	result, err := s.predictor.Predict(r.Context(), req.Text)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	example, err := s.curator.Remember(r.Context(), req.Text, req.Emotion, req.Intent)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, toExampleResponse(example))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resp := []exampleResponse{}
	for _, e := range s.curator.List(r.Context()) {
		resp = append(resp, toExampleResponse(e))
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.curator.Clear(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(model.ErrInvalidInput, "malformed request body", goerr.V("cause", err.Error()))
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoEvidence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrOracle):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logging.From(ctx).Error("request failed", "error", err, "status", status)
	} else {
		logging.From(ctx).Info("request rejected", "error", err, "status", status)
	}
	writeJSON(ctx, w, status, map[string]string{"error": err.Error()})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err)
	}
}
