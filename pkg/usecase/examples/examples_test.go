package examples_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/repository"
	"github.com/m-mizutani/emotent/pkg/service/tagger"
	"github.com/m-mizutani/emotent/pkg/usecase/examples"
	"github.com/m-mizutani/gt"
)

func setup(t *testing.T, opts ...examples.Option) (*examples.UseCase, *memory.Store, *angleEmbedder) {
	store := memory.New(repository.NewMemory())
	gt.NoError(t, store.Load(context.Background()))
	embedder := &angleEmbedder{}
	return examples.New(store, embedder, opts...), store, embedder
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := setup(t, examples.WithTagger(tagger.New()))

	ex, err := uc.Remember(ctx, "Two towels to room 12 please", "neutral", "service_request")
	gt.NoError(t, err)
	gt.Equal(t, ex.Intent, "service_request")
	gt.Equal(t, ex.Tags["action"], any("request_service"))
	gt.Equal(t, ex.Tags["amenity"], any("housekeeping"))

	gt.A(t, store.Examples()).Length(1)
	gt.A(t, uc.List(ctx)).Length(1)
}

func TestRememberRejectsUnknownLabels(t *testing.T) {
	ctx := context.Background()
	uc, store, embedder := setup(t)

	_, err := uc.Remember(ctx, "hi", "bored", "booking")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = uc.Remember(ctx, "hi", "joy", "weather")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
	_, err = uc.Remember(ctx, "", "joy", "booking")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	gt.Equal(t, embedder.calls, 0)
	gt.Equal(t, store.Len(), 0)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := setup(t)

	_, err := uc.SeedArtifact(ctx, &examples.Artifact{
		Task:   model.TaskIntent,
		Texts:  []string{"book a room"},
		Labels: []string{"booking"},
	})
	gt.NoError(t, err)

	_, err = uc.Remember(ctx, "thanks a lot", "joy", "feedback")
	gt.NoError(t, err)

	n, err := uc.Clear(ctx)
	gt.NoError(t, err)
	gt.Equal(t, n, 1)
	gt.A(t, uc.List(ctx)).Length(0)
	gt.Equal(t, store.Len(), 1)
}

func TestSeedArtifact(t *testing.T) {
	ctx := context.Background()

	t.Run("computes missing embeddings", func(t *testing.T) {
		uc, store, embedder := setup(t, examples.WithSeedConcurrency(2))
		n, err := uc.SeedArtifact(ctx, &examples.Artifact{
			Task:   model.TaskIntent,
			Texts:  []string{"book", "book a spa", "where is the gym located"},
			Labels: []string{"booking", "booking", "hotel_info"},
		})
		gt.NoError(t, err)
		gt.Equal(t, n, 3)
		gt.Equal(t, embedder.calls, 3)
		gt.Equal(t, store.Len(), 3)

		// seeds are indexed but not listed
		gt.A(t, uc.List(ctx)).Length(0)
		dist, err := store.LabelDistribution(model.TaskIntent, []float32{1, 0}, 3)
		gt.NoError(t, err)
		gt.Map(t, dist.Map()).HasKey("booking")
	})

	t.Run("normalizes given embeddings", func(t *testing.T) {
		uc, store, embedder := setup(t)
		_, err := uc.SeedArtifact(ctx, &examples.Artifact{
			Task:       model.TaskEmotion,
			Texts:      []string{"yay", "boo"},
			Labels:     []string{"joy", "sadness"},
			Embeddings: [][]float32{{2, 0}, {0, 3}},
		})
		gt.NoError(t, err)
		gt.Equal(t, embedder.calls, 0)

		n, found, err := store.Nearest([]float32{1, 0}, model.TaskEmotion)
		gt.NoError(t, err)
		gt.True(t, found)
		gt.Equal(t, n.Example.Emotion, "joy")
		gt.True(t, n.Distance < 1e-9)
	})

	t.Run("rejects inconsistent artifacts", func(t *testing.T) {
		uc, _, _ := setup(t)
		bad := []*examples.Artifact{
			{Task: "topic", Texts: []string{"a"}, Labels: []string{"booking"}},
			{Task: model.TaskIntent, Texts: []string{"a", "b"}, Labels: []string{"booking"}},
			{Task: model.TaskIntent, Texts: []string{"a"}, Labels: []string{"joy"}},
			{Task: model.TaskIntent, Texts: []string{"a"}, Labels: []string{"booking"}, Embeddings: [][]float32{{1, 0}, {0, 1}}},
			{Task: model.TaskIntent, Texts: []string{"a"}, Labels: []string{"booking"}, Embeddings: [][]float32{{0, 0}}},
		}
		for _, a := range bad {
			_, err := uc.SeedArtifact(ctx, a)
			gt.Error(t, err)
		}
	})
}

func TestSeedFromFileAndGCS(t *testing.T) {
	ctx := context.Background()
	artifact := examples.Artifact{
		Task:   model.TaskIntent,
		Texts:  []string{"book a spa", "pool hours?"},
		Labels: []string{"booking", "hotel_info"},
	}
	data, err := json.Marshal(artifact)
	gt.NoError(t, err)

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		gt.NoError(t, os.WriteFile(path, data, 0644))

		uc, store, _ := setup(t)
		n, err := uc.Seed(ctx, path)
		gt.NoError(t, err)
		gt.Equal(t, n, 2)
		gt.Equal(t, store.Len(), 2)
	})

	t.Run("gcs object", func(t *testing.T) {
		bucket := newMemStorage()
		bucket.objects["seeds/intent.json"] = data
		var opened string
		factory := func(ctx context.Context, name string) (adapter.Storage, error) {
			opened = name
			return bucket, nil
		}

		uc, store, _ := setup(t, examples.WithStorage(factory))
		n, err := uc.Seed(ctx, "gs://artifacts/seeds/intent.json")
		gt.NoError(t, err)
		gt.Equal(t, n, 2)
		gt.Equal(t, opened, "artifacts")
		gt.Equal(t, store.Len(), 2)
	})

	t.Run("missing file", func(t *testing.T) {
		uc, _, _ := setup(t)
		_, err := uc.Seed(ctx, filepath.Join(t.TempDir(), "nope.json"))
		gt.Error(t, err)
	})
}

func TestSeedFromQuery(t *testing.T) {
	ctx := context.Background()
	rows := []map[string]any{
		{"text": "book a room", "label": "booking", "embedding": []bigquery.Value{1.0, 0.0}},
		{"text": "gym hours", "label": "hotel_info", "embedding": []bigquery.Value{0.0, 1.0}},
	}

	t.Run("rows with embeddings", func(t *testing.T) {
		bq := &mockBigQuery{
			dryRunFunc: func(ctx context.Context, query string) (int64, error) { return 1024, nil },
			queryFunc: func(ctx context.Context, query string) ([]map[string]any, error) {
				return rows, nil
			},
		}
		uc, store, embedder := setup(t, examples.WithBigQuery(bq), examples.WithMaxScanBytes(1<<20))

		n, err := uc.SeedFromQuery(ctx, model.TaskIntent, "SELECT text, label, embedding FROM seeds")
		gt.NoError(t, err)
		gt.Equal(t, n, 2)
		gt.Equal(t, embedder.calls, 0)

		nb, found, err := store.Nearest([]float32{0, 1}, model.TaskIntent)
		gt.NoError(t, err)
		gt.True(t, found)
		gt.Equal(t, nb.Example.Intent, "hotel_info")
	})

	t.Run("scan limit", func(t *testing.T) {
		queried := false
		bq := &mockBigQuery{
			dryRunFunc: func(ctx context.Context, query string) (int64, error) { return 10 << 30, nil },
			queryFunc: func(ctx context.Context, query string) ([]map[string]any, error) {
				queried = true
				return rows, nil
			},
		}
		uc, _, _ := setup(t, examples.WithBigQuery(bq), examples.WithMaxScanBytes(1<<30))

		_, err := uc.SeedFromQuery(ctx, model.TaskIntent, "SELECT * FROM huge")
		gt.Error(t, err)
		gt.False(t, queried)
	})

	t.Run("missing column", func(t *testing.T) {
		bq := &mockBigQuery{
			queryFunc: func(ctx context.Context, query string) ([]map[string]any, error) {
				return []map[string]any{{"text": "hi"}}, nil
			},
		}
		uc, _, _ := setup(t, examples.WithBigQuery(bq))
		_, err := uc.SeedFromQuery(ctx, model.TaskIntent, "SELECT text FROM seeds")
		gt.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		uc, _, _ := setup(t)
		_, err := uc.SeedFromQuery(ctx, model.TaskIntent, "SELECT 1")
		gt.Error(t, err)
	})
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	bucket := newMemStorage()
	factory := func(ctx context.Context, name string) (adapter.Storage, error) {
		return bucket, nil
	}

	src, _, _ := setup(t, examples.WithStorage(factory))
	_, err := src.Remember(ctx, "book a spa", "joy", "booking")
	gt.NoError(t, err)
	_, err = src.Remember(ctx, "the wifi is slow", "anger", "service_request")
	gt.NoError(t, err)

	n, err := src.Export(ctx, "gs://backups/emotent/examples.jsonl")
	gt.NoError(t, err)
	gt.Equal(t, n, 2)

	dst, store, _ := setup(t, examples.WithStorage(factory))
	n, err = dst.Import(ctx, "gs://backups/emotent/examples.jsonl")
	gt.NoError(t, err)
	gt.Equal(t, n, 2)
	gt.A(t, store.Examples()).Length(2)
	gt.Equal(t, store.Examples()[0].Text, "book a spa")
	gt.Equal(t, store.Examples()[0].ID, src.List(ctx)[0].ID)

	// importing twice skips known IDs
	n, err = dst.Import(ctx, "gs://backups/emotent/examples.jsonl")
	gt.NoError(t, err)
	gt.Equal(t, n, 0)
	gt.A(t, store.Examples()).Length(2)
}

func TestExportImportLocalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.jsonl")

	src, _, _ := setup(t)
	_, err := src.Remember(ctx, "great stay", "joy", "feedback")
	gt.NoError(t, err)
	_, err = src.Export(ctx, path)
	gt.NoError(t, err)

	dst, _, _ := setup(t)
	n, err := dst.Import(ctx, path)
	gt.NoError(t, err)
	gt.Equal(t, n, 1)

	// a truncated export is rejected as a whole
	gt.NoError(t, os.WriteFile(path, []byte(`{"id":"x","text":"a","emotion":"joy","intent":"booking","tags":{},"added_at":"2024-01-01T00:00:00Z","emb":[1,0]}`), 0644))
	fresh, store, _ := setup(t)
	_, err = fresh.Import(ctx, path)
	gt.Error(t, err)
	gt.Equal(t, store.Len(), 0)
}
