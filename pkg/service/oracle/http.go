package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// HTTPClassifier calls an inference endpoint that speaks the Hugging Face
// text-classification or zero-shot-classification JSON shapes.
type HTTPClassifier struct {
	url        string
	token      string
	task       model.Task
	zeroShot   bool
	aliases    map[string]string
	httpClient *http.Client
}

type HTTPOption func(*HTTPClassifier)

// WithToken sets a bearer token
func WithToken(token string) HTTPOption {
	return func(x *HTTPClassifier) {
		x.token = token
	}
}

// WithZeroShot sends the task labels as candidate_labels
func WithZeroShot() HTTPOption {
	return func(x *HTTPClassifier) {
		x.zeroShot = true
	}
}

// WithLabelAlias maps an endpoint label (case-insensitive) to a task label
func WithLabelAlias(from, to string) HTTPOption {
	return func(x *HTTPClassifier) {
		x.aliases[strings.ToLower(strings.TrimSpace(from))] = strings.ToLower(strings.TrimSpace(to))
	}
}

// ParseLabelAliases parses "from=to" pairs into options. Targets must belong to
// the label set of task.
func ParseLabelAliases(task model.Task, pairs []string) ([]HTTPOption, error) {
	var opts []HTTPOption
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.ToLower(strings.TrimSpace(to))
		if !ok || from == "" || to == "" {
			return nil, goerr.Wrap(model.ErrInvalidConfig, "label alias must be from=to", goerr.V("alias", pair))
		}
		if !task.Labels().Contains(to) {
			return nil, goerr.Wrap(model.ErrInvalidConfig, "label alias targets unknown label",
				goerr.V("alias", pair), goerr.V("task", task))
		}
		opts = append(opts, WithLabelAlias(from, to))
	}
	return opts, nil
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(x *HTTPClassifier) {
		x.httpClient = c
	}
}

func NewHTTPClassifier(url string, task model.Task, opts ...HTTPOption) (*HTTPClassifier, error) {
	if url == "" {
		return nil, goerr.New("classifier url is required", goerr.V("task", task))
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	x := &HTTPClassifier{
		url:     url,
		task:    task,
		aliases: map[string]string{},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

func (x *HTTPClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	body := inferenceRequest{Inputs: text}
	if x.zeroShot {
		body.Parameters = map[string]any{
			"candidate_labels": x.task.Labels().Names(),
			"multi_label":      false,
		}
	}

	raw, err := x.post(ctx, body)
	if err != nil {
		return nil, err
	}

	labels, scores, err := decodeScores(raw)
	if err != nil {
		return nil, goerr.Wrap(model.ErrOracle, "unexpected classifier response",
			goerr.V("url", x.url), goerr.V("cause", err.Error()))
	}
	return toDistribution(x.task.Labels(), labels, scores, x.aliases)
}

func (x *HTTPClassifier) post(ctx context.Context, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.url, bytes.NewReader(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if x.token != "" {
		req.Header.Set("Authorization", "Bearer "+x.token)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(model.ErrOracle, "failed to send request",
			goerr.V("url", x.url), goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(model.ErrOracle, "failed to read response",
			goerr.V("url", x.url), goerr.V("cause", err.Error()))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.Wrap(model.ErrOracle, "classifier returned error",
			goerr.V("url", x.url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)))
	}
	return data, nil
}

// decodeScores accepts [[{label,score}...]], [{label,score}...] and
// {labels:[...], scores:[...]}.
func decodeScores(data []byte) ([]string, []float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, goerr.New("empty body")
	}

	if data[0] == '{' {
		var zs zeroShotResponse
		if err := json.Unmarshal(data, &zs); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to decode zero-shot response")
		}
		return zs.Labels, zs.Scores, nil
	}

	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil, nil
		}
		return splitScores(nested[0])
	}

	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to decode classification response")
	}
	return splitScores(flat)
}

func splitScores(items []labelScore) ([]string, []float64, error) {
	labels := make([]string, len(items))
	scores := make([]float64, len(items))
	for i, item := range items {
		labels[i] = item.Label
		scores[i] = item.Score
	}
	return labels, scores, nil
}
