package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Neighbor is one result of a similarity query
type Neighbor struct {
	Example *model.Example

	// Similarity is the dot product with the query (higher is more similar)
	Similarity float64

	// Distance is the squared Euclidean distance to the query (lower is more similar)
	Distance float64
}

// snapshot is an immutable view of the index. Writers publish a new snapshot;
// readers never lock.
type snapshot struct {
	entries []*model.Example
	dim     int
}

// Store is the example memory: a durable append-only log plus an in-memory
// similarity index over the embeddings. Appends are serialized; queries read the
// latest published snapshot and may miss an append that is still in flight.
type Store struct {
	log  interfaces.ExampleLog
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New creates a Store backed by log. Call Load to read persisted examples.
func New(log interfaces.ExampleLog) *Store {
	s := &Store{log: log}
	s.snap.Store(&snapshot{})
	return s
}

func (x *Store) current() *snapshot {
	return x.snap.Load()
}

// Load reads every persisted example into memory. Any malformed record fails the
// load and leaves the current contents untouched.
func (x *Store) Load(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	examples, err := x.log.LoadExamples(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load examples")
	}

	cur := x.current()
	entries := make([]*model.Example, 0, len(examples)+len(cur.entries))
	dim := 0
	for _, e := range cur.entries {
		if e.Seed {
			entries = append(entries, e)
			dim = len(e.Embedding)
		}
	}

	for i, e := range examples {
		if err := validateEmbedding(e.Embedding, dim); err != nil {
			return goerr.Wrap(model.ErrParse, "invalid embedding in persisted example",
				goerr.V("index", i), goerr.V("id", e.ID), goerr.V("cause", err.Error()))
		}
		dim = len(e.Embedding)
		entries = append(entries, e)
	}

	x.snap.Store(&snapshot{entries: entries, dim: dim})
	logging.From(ctx).Debug("memory loaded", "examples", len(examples), "total", len(entries))
	return nil
}

// Append durably persists example and then makes it visible to queries
func (x *Store) Append(ctx context.Context, example *model.Example) error {
	if example == nil {
		return goerr.New("example is nil")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.current()
	if err := validateEmbedding(example.Embedding, cur.dim); err != nil {
		return goerr.Wrap(err, "rejected example", goerr.V("id", example.ID))
	}

	if err := x.log.AppendExample(ctx, example); err != nil {
		return goerr.Wrap(model.ErrStoreWrite, "failed to persist example",
			goerr.V("id", example.ID), goerr.V("cause", err.Error()))
	}

	// Appending past len never touches elements visible to older snapshots
	x.snap.Store(&snapshot{
		entries: append(cur.entries, example),
		dim:     len(example.Embedding),
	})
	return nil
}

// Seed installs entries built offline. Seeds are queryable but never persisted,
// and survive Clear.
func (x *Store) Seed(entries []*model.Example) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.current()
	dim := cur.dim
	for i, e := range entries {
		if err := validateEmbedding(e.Embedding, dim); err != nil {
			return goerr.Wrap(err, "invalid seed entry", goerr.V("index", i))
		}
		dim = len(e.Embedding)
	}

	next := slices.Clone(cur.entries)
	for _, e := range entries {
		e.Seed = true
		next = append(next, e)
	}
	x.snap.Store(&snapshot{entries: next, dim: dim})
	return nil
}

// Clear erases all persisted examples. Seed entries are kept.
func (x *Store) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.log.ClearExamples(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear examples")
	}

	cur := x.current()
	var seeds []*model.Example
	dim := 0
	for _, e := range cur.entries {
		if e.Seed {
			seeds = append(seeds, e)
			dim = len(e.Embedding)
		}
	}
	x.snap.Store(&snapshot{entries: seeds, dim: dim})
	return nil
}

// Examples returns the persisted (non-seed) examples in append order
func (x *Store) Examples() []*model.Example {
	var out []*model.Example
	for _, e := range x.current().entries {
		if !e.Seed {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of indexed entries, seeds included
func (x *Store) Len() int {
	return len(x.current().entries)
}

// Dimension returns the embedding dimension of the index, 0 if empty
func (x *Store) Dimension() int {
	return x.current().dim
}

// QueryKNearest returns the min(k, n) entries most similar to vec by dot
// product, in descending similarity. Equal similarities keep insertion order.
func (x *Store) QueryKNearest(vec []float32, k int) ([]Neighbor, error) {
	return x.query(vec, k, nil)
}

func (x *Store) query(vec []float32, k int, keep func(*model.Example) bool) ([]Neighbor, error) {
	snap := x.current()
	if len(snap.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != snap.dim {
		return nil, goerr.Wrap(model.ErrInvalidEmbedding, "query dimension mismatch",
			goerr.V("expected", snap.dim), goerr.V("actual", len(vec)))
	}

	neighbors := make([]Neighbor, 0, len(snap.entries))
	for _, e := range snap.entries {
		if keep != nil && !keep(e) {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Example:    e,
			Similarity: Dot(vec, e.Embedding),
		})
	}

	slices.SortStableFunc(neighbors, func(a, b Neighbor) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	for i := range neighbors {
		neighbors[i].Distance = SquaredL2(vec, neighbors[i].Example.Embedding)
	}
	return neighbors, nil
}

// Nearest returns the entry closest to vec by squared Euclidean distance among
// entries labeled for task. ok is false when there is no such entry.
func (x *Store) Nearest(vec []float32, task model.Task) (Neighbor, bool, error) {
	snap := x.current()
	if len(snap.entries) == 0 {
		return Neighbor{}, false, nil
	}
	if len(vec) != snap.dim {
		return Neighbor{}, false, goerr.Wrap(model.ErrInvalidEmbedding, "query dimension mismatch",
			goerr.V("expected", snap.dim), goerr.V("actual", len(vec)))
	}

	var best Neighbor
	found := false
	for _, e := range snap.entries {
		if e.Label(task) == "" {
			continue
		}
		d := SquaredL2(vec, e.Embedding)
		if !found || d < best.Distance {
			best = Neighbor{Example: e, Distance: d, Similarity: Dot(vec, e.Embedding)}
			found = true
		}
	}
	return best, found, nil
}

// LabelDistribution counts task labels among the k nearest entries that carry
// a label for task and divides by the neighbor count. An empty store yields a
// zero distribution.
func (x *Store) LabelDistribution(task model.Task, vec []float32, k int) (model.Distribution, error) {
	labels := task.Labels()
	dist := model.NewDistribution(labels)

	neighbors, err := x.query(vec, k, func(e *model.Example) bool {
		return labels.Contains(e.Label(task))
	})
	if err != nil {
		return dist, err
	}
	if len(neighbors) == 0 {
		return dist, nil
	}

	for _, n := range neighbors {
		dist.Add(n.Example.Label(task), 1)
	}
	total := float64(len(neighbors))
	for _, label := range labels.Names() {
		if w := dist.Weight(label); w > 0 {
			dist.Set(label, w/total)
		}
	}
	return dist, nil
}
