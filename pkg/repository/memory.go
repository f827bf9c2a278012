package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/emotent/pkg/model"
)

// Memory is a process-local example log. Contents are lost on exit.
type Memory struct {
	mu       sync.Mutex
	examples []*model.Example
}

// NewMemory creates an empty in-memory example log
func NewMemory() *Memory {
	return &Memory{}
}

func (r *Memory) LoadExamples(ctx context.Context) ([]*model.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Example, len(r.examples))
	copy(out, r.examples)
	return out, nil
}

func (r *Memory) AppendExample(ctx context.Context, example *model.Example) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.examples = append(r.examples, example)
	return nil
}

func (r *Memory) ClearExamples(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.examples = nil
	return nil
}
