package examples

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Artifact is an offline-built similarity index: texts, labels and optional
// embeddings as parallel sequences in matching order. Missing embeddings are
// computed at seed time.
type Artifact struct {
	Task       model.Task  `json:"task"`
	Texts      []string    `json:"texts"`
	Labels     []string    `json:"labels"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
}

func (a *Artifact) validate() error {
	if err := a.Task.Validate(); err != nil {
		return err
	}
	if len(a.Texts) != len(a.Labels) {
		return goerr.New("texts and labels differ in length",
			goerr.V("texts", len(a.Texts)), goerr.V("labels", len(a.Labels)))
	}
	if len(a.Embeddings) > 0 && len(a.Embeddings) != len(a.Texts) {
		return goerr.New("embeddings and texts differ in length",
			goerr.V("embeddings", len(a.Embeddings)), goerr.V("texts", len(a.Texts)))
	}
	labels := a.Task.Labels()
	for i, l := range a.Labels {
		if !labels.Contains(l) {
			return goerr.New("unknown label in artifact", goerr.V("index", i), goerr.V("label", l), goerr.V("task", a.Task))
		}
	}
	return nil
}

// Seed installs the artifact stored at a local path or gs:// location
func (u *UseCase) Seed(ctx context.Context, location string) (int, error) {
	r, err := u.openReader(ctx, location)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var artifact Artifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return 0, goerr.Wrap(err, "failed to decode seed artifact", goerr.V("location", location))
	}

	return u.SeedArtifact(ctx, &artifact)
}

// SeedArtifact installs an in-memory artifact as non-persisted seed entries
func (u *UseCase) SeedArtifact(ctx context.Context, a *Artifact) (int, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}

	vectors, err := u.seedVectors(ctx, a)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	entries := make([]*model.Example, len(a.Texts))
	for i := range a.Texts {
		e := &model.Example{
			ID:        model.ExampleID(fmt.Sprintf("seed-%s-%d", a.Task, i)),
			Text:      a.Texts[i],
			Tags:      model.Tags{},
			AddedAt:   now,
			Embedding: vectors[i],
		}
		if a.Task == model.TaskEmotion {
			e.Emotion = a.Labels[i]
		} else {
			e.Intent = a.Labels[i]
		}
		entries[i] = e
	}

	if err := u.store.Seed(entries); err != nil {
		return 0, goerr.Wrap(err, "failed to install seed entries")
	}

	logging.From(ctx).Info("memory seeded", "task", a.Task, "entries", len(entries))
	return len(entries), nil
}

// seedVectors normalizes given embeddings or computes missing ones in parallel
func (u *UseCase) seedVectors(ctx context.Context, a *Artifact) ([][]float32, error) {
	vectors := make([][]float32, len(a.Texts))

	if len(a.Embeddings) > 0 {
		for i, raw := range a.Embeddings {
			v, err := memory.Normalize(raw)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid seed embedding", goerr.V("index", i))
			}
			vectors[i] = v
		}
		return vectors, nil
	}

	if u.embedder == nil {
		return nil, goerr.New("artifact has no embeddings and no embedder is configured")
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(u.seedConcurrency, 1))
	for i, text := range a.Texts {
		eg.Go(func() error {
			v, err := u.embedder.Embed(ctx, text)
			if err != nil {
				return goerr.Wrap(err, "failed to embed seed text", goerr.V("index", i))
			}
			vectors[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// SeedFromQuery seeds task from a BigQuery query returning text, label and an
// optional embedding column.
func (u *UseCase) SeedFromQuery(ctx context.Context, task model.Task, query string) (int, error) {
	if u.bigquery == nil {
		return 0, goerr.New("bigquery is not configured")
	}

	if u.maxScanBytes > 0 {
		scan, err := u.bigquery.DryRun(ctx, query)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to estimate query cost")
		}
		if scan > u.maxScanBytes {
			return 0, goerr.New("seed query scans too much data",
				goerr.V("bytes", scan), goerr.V("limit", u.maxScanBytes))
		}
	}

	rows, err := u.bigquery.Query(ctx, query)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run seed query")
	}

	artifact, err := artifactFromRows(task, rows)
	if err != nil {
		return 0, err
	}
	return u.SeedArtifact(ctx, artifact)
}

func artifactFromRows(task model.Task, rows []map[string]any) (*Artifact, error) {
	a := &Artifact{Task: task}
	withEmbedding := 0

	for i, row := range rows {
		text, ok := row["text"].(string)
		if !ok {
			return nil, goerr.New("seed row has no text column", goerr.V("row", i))
		}
		label, ok := row["label"].(string)
		if !ok {
			return nil, goerr.New("seed row has no label column", goerr.V("row", i))
		}
		a.Texts = append(a.Texts, text)
		a.Labels = append(a.Labels, label)

		if raw, ok := row["embedding"]; ok && raw != nil {
			vec, err := toVector(raw)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid embedding column", goerr.V("row", i))
			}
			a.Embeddings = append(a.Embeddings, vec)
			withEmbedding++
		}
	}

	if withEmbedding > 0 && withEmbedding != len(rows) {
		return nil, goerr.New("embedding column must be set on every row or none",
			goerr.V("rows", len(rows)), goerr.V("with_embedding", withEmbedding))
	}
	return a, nil
}

func toVector(raw any) ([]float32, error) {
	var values []any
	switch v := raw.(type) {
	case []bigquery.Value:
		for _, x := range v {
			values = append(values, x)
		}
	case []any:
		values = v
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, nil
	default:
		return nil, goerr.New("embedding must be an array", goerr.V("type", fmt.Sprintf("%T", raw)))
	}

	out := make([]float32, len(values))
	for i, x := range values {
		f, ok := x.(float64)
		if !ok {
			return nil, goerr.New("embedding element must be FLOAT64", goerr.V("index", i))
		}
		out[i] = float32(f)
	}
	return out, nil
}
