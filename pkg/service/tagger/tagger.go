// Package tagger extracts free-form request metadata (amenity, quantity, time)
// from guest text.
package tagger

import (
	"context"
	"time"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/olebedev/when"
)

// Tagger produces {action, amenity, qty, when} tags, optionally rewritten by a
// rego policy.
type Tagger struct {
	now    func() time.Time
	policy *Policy
	parser *when.Parser
}

type Option func(*Tagger)

// WithClock sets the reference time for relative dates
func WithClock(now func() time.Time) Option {
	return func(t *Tagger) {
		t.now = now
	}
}

// WithPolicy sets a rego overlay. A nil policy is ignored.
func WithPolicy(p *Policy) Option {
	return func(t *Tagger) {
		t.policy = p
	}
}

func New(opts ...Option) *Tagger {
	t := &Tagger{
		now:    time.Now,
		parser: newTimeParser(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (x *Tagger) Tag(ctx context.Context, text string, action model.Action) (model.Tags, error) {
	if action == "" {
		action = model.ActionOther
	}

	tags := model.Tags{
		"action":  string(action),
		"amenity": detectAmenity(text),
		"qty":     nil,
		"when":    nil,
	}
	if n, ok := detectQuantity(text); ok {
		tags["qty"] = n
	}
	if t, ok := detectWhen(x.parser, text, x.now()); ok {
		tags["when"] = t.Format(time.RFC3339)
	}

	if x.policy == nil {
		return tags, nil
	}
	return x.policy.Apply(ctx, text, action, tags)
}
