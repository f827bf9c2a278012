package examples_test

import (
	"bytes"
	"context"
	"io"
	"math"
	"sync"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

// angleEmbedder maps text length to an angle on the unit circle
type angleEmbedder struct {
	interfaces.Embedder
	mu    sync.Mutex
	calls int
}

func (m *angleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	rad := float64(len(text)) * 0.1
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}, nil
}

type memStorage struct {
	adapter.Storage
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

type objectWriter struct {
	bytes.Buffer
	commit func([]byte)
}

func (w *objectWriter) Close() error {
	w.commit(w.Bytes())
	return nil
}

func (m *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &objectWriter{commit: func(b []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = bytes.Clone(b)
	}}, nil
}

func (m *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.New("object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type mockBigQuery struct {
	adapter.BigQuery
	dryRunFunc func(ctx context.Context, query string) (int64, error)
	queryFunc  func(ctx context.Context, query string) ([]map[string]any, error)
}

func (m *mockBigQuery) DryRun(ctx context.Context, query string) (int64, error) {
	return m.dryRunFunc(ctx, query)
}

func (m *mockBigQuery) Query(ctx context.Context, query string) ([]map[string]any, error) {
	return m.queryFunc(ctx, query)
}
