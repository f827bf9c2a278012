package predict

import (
	"github.com/m-mizutani/emotent/pkg/model"
)

// Blend returns alpha*a + (1-alpha)*b over the union of both label sets,
// renormalized to sum to 1. If the combined weight is zero the result stays all
// zero and callers must fall back to the classifier's own answer.
func Blend(a, b model.Distribution, alpha float64) model.Distribution {
	labels := unionLabels(a.Labels(), b.Labels())
	if labels == nil {
		return model.Distribution{}
	}

	out := model.NewDistribution(labels)
	for _, label := range labels.Names() {
		out.Set(label, alpha*a.Weight(label)+(1-alpha)*b.Weight(label))
	}
	return out.Normalize()
}

func unionLabels(a, b *model.LabelSet) *model.LabelSet {
	switch {
	case a == nil:
		return b
	case b == nil, a == b:
		return a
	}
	return model.NewLabelSet(append(a.Names(), b.Names()...)...)
}
