package examples

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
)

// StorageFactory opens a Cloud Storage bucket
type StorageFactory func(ctx context.Context, bucket string) (adapter.Storage, error)

// UseCase provides administrative operations on the example memory
type UseCase struct {
	store    *memory.Store
	embedder interfaces.Embedder
	tagger   interfaces.Tagger
	storage  StorageFactory
	bigquery adapter.BigQuery

	seedConcurrency int
	maxScanBytes    int64
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithTagger sets the tagger used for manually confirmed examples
func WithTagger(t interfaces.Tagger) Option {
	return func(uc *UseCase) {
		uc.tagger = t
	}
}

// WithStorage overrides how gs:// locations are opened
func WithStorage(f StorageFactory) Option {
	return func(uc *UseCase) {
		uc.storage = f
	}
}

// WithBigQuery enables seeding from query results
func WithBigQuery(bq adapter.BigQuery) Option {
	return func(uc *UseCase) {
		uc.bigquery = bq
	}
}

// WithSeedConcurrency bounds parallel embedding calls while seeding
func WithSeedConcurrency(n int) Option {
	return func(uc *UseCase) {
		uc.seedConcurrency = n
	}
}

// WithMaxScanBytes rejects seed queries that would scan more than n bytes. 0 disables the check.
func WithMaxScanBytes(n int64) Option {
	return func(uc *UseCase) {
		uc.maxScanBytes = n
	}
}

// New creates a memory UseCase
func New(store *memory.Store, embedder interfaces.Embedder, opts ...Option) *UseCase {
	uc := &UseCase{
		store:           store,
		embedder:        embedder,
		storage:         adapter.NewStorage,
		seedConcurrency: 8,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
