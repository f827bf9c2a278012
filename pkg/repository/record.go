package repository

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// legacyTimeFormat is the naive ISO-8601 layout (no zone, assumed UTC) written by older logs
const legacyTimeFormat = "2006-01-02T15:04:05.999999999"

// Record is the serialized form of an example, one JSON object per line
type Record struct {
	ID      string         `json:"id,omitempty"`
	Text    string         `json:"text"`
	Emotion string         `json:"emotion"`
	Intent  string         `json:"intent"`
	Tags    map[string]any `json:"tags"`
	AddedAt string         `json:"added_at"`
	Emb     []float32      `json:"emb"`
}

// NewRecord converts an example into its serialized form
func NewRecord(e *model.Example) *Record {
	tags := map[string]any(e.Tags)
	if tags == nil {
		tags = map[string]any{}
	}
	return &Record{
		ID:      string(e.ID),
		Text:    e.Text,
		Emotion: e.Emotion,
		Intent:  e.Intent,
		Tags:    tags,
		AddedAt: e.AddedAt.UTC().Format(time.RFC3339Nano),
		Emb:     []float32(e.Embedding),
	}
}

// Example converts the record back into an example. Missing IDs are assigned.
func (r *Record) Example() (*model.Example, error) {
	if r.Text == "" {
		return nil, goerr.Wrap(model.ErrParse, "record has no text")
	}
	if len(r.Emb) == 0 {
		return nil, goerr.Wrap(model.ErrParse, "record has no embedding", goerr.V("text", r.Text))
	}

	addedAt, err := ParseTimestamp(r.AddedAt)
	if err != nil {
		return nil, err
	}

	id := model.ExampleID(r.ID)
	if id == "" {
		id = model.NewExampleID()
	}

	return &model.Example{
		ID:        id,
		Text:      r.Text,
		Emotion:   r.Emotion,
		Intent:    r.Intent,
		Tags:      model.Tags(r.Tags),
		AddedAt:   addedAt,
		Embedding: r.Emb,
	}, nil
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 timestamps
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyTimeFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, goerr.Wrap(model.ErrParse, "invalid added_at", goerr.V("added_at", s))
	}
	return t, nil
}

// MarshalExample encodes e as a single JSON line without the trailing newline
func MarshalExample(e *model.Example) ([]byte, error) {
	raw, err := json.Marshal(NewRecord(e))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal example", goerr.V("id", e.ID))
	}
	return raw, nil
}

// UnmarshalExample decodes one JSON line
func UnmarshalExample(line []byte) (*model.Example, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, goerr.Wrap(model.ErrParse, "invalid JSON record", goerr.V("cause", err.Error()))
	}
	return r.Example()
}
