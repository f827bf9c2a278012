package model

import (
	"encoding/json"
	"slices"
)

// Distribution is a nonnegative weight per label of a closed LabelSet.
// Labels outside the set always have weight 0.
type Distribution struct {
	labels  *LabelSet
	weights []float64
}

// NewDistribution returns an all-zero distribution over labels
func NewDistribution(labels *LabelSet) Distribution {
	return Distribution{
		labels:  labels,
		weights: make([]float64, labels.Len()),
	}
}

// DistributionFrom builds a distribution from a label->weight map. Entries for
// labels outside the set and negative weights are dropped.
func DistributionFrom(labels *LabelSet, m map[string]float64) Distribution {
	d := NewDistribution(labels)
	for label, w := range m {
		d.Set(label, w)
	}
	return d
}

// Labels returns the label set of the distribution
func (d Distribution) Labels() *LabelSet { return d.labels }

// Weight returns the weight of label, 0 if unknown
func (d Distribution) Weight(label string) float64 {
	if d.labels == nil {
		return 0
	}
	i, ok := d.labels.Index(label)
	if !ok {
		return 0
	}
	return d.weights[i]
}

// Set assigns w to label. It reports false if label is not in the set or w is negative.
func (d Distribution) Set(label string, w float64) bool {
	if d.labels == nil || w < 0 {
		return false
	}
	i, ok := d.labels.Index(label)
	if !ok {
		return false
	}
	d.weights[i] = w
	return true
}

// Add increments the weight of label
func (d Distribution) Add(label string, w float64) bool {
	return d.Set(label, d.Weight(label)+w)
}

// Sum returns the total weight
func (d Distribution) Sum() float64 {
	var s float64
	for _, w := range d.weights {
		s += w
	}
	return s
}

// IsZero reports whether every weight is 0 (including an unset distribution)
func (d Distribution) IsZero() bool {
	for _, w := range d.weights {
		if w != 0 {
			return false
		}
	}
	return true
}

// Normalize returns a copy scaled to sum to 1. A zero-total distribution is
// returned as all zeros; no uniform distribution is fabricated.
func (d Distribution) Normalize() Distribution {
	out := Distribution{labels: d.labels, weights: slices.Clone(d.weights)}
	total := d.Sum()
	if total == 0 {
		return out
	}
	for i := range out.weights {
		out.weights[i] /= total
	}
	return out
}

// Top returns the label with the largest weight. Ties go to the
// lexicographically smallest label. ok is false when the distribution is zero.
func (d Distribution) Top() (label string, weight float64, ok bool) {
	best := -1
	for i, w := range d.weights {
		if w > 0 && (best < 0 || w > d.weights[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return d.labels.Name(best), d.weights[best], true
}

// Map returns the non-zero entries as a label->weight map
func (d Distribution) Map() map[string]float64 {
	m := make(map[string]float64)
	for i, w := range d.weights {
		if w != 0 {
			m[d.labels.Name(i)] = w
		}
	}
	return m
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}
