// Package oracle implements the embedders and classifiers the ensemble router
// consults: Gemini structured output, Claude and plain HTTP inference endpoints.
package oracle

import (
	"errors"
	"strings"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

func oracleError(err error, msg string, values ...goerr.Option) error {
	if errors.Is(err, model.ErrOracle) {
		return goerr.Wrap(err, msg, values...)
	}
	return goerr.Wrap(model.ErrOracle, msg, append(values, goerr.V("cause", err.Error()))...)
}

// toDistribution builds a classification from label/score pairs. Labels are
// matched case-insensitively and unknown labels are dropped, but their mass
// stays in the denominator so confidences are never inflated by the drop.
func toDistribution(set *model.LabelSet, labels []string, scores []float64, aliases map[string]string) (*model.Classification, error) {
	if len(labels) != len(scores) {
		return nil, goerr.Wrap(model.ErrOracle, "labels and scores differ in length",
			goerr.V("labels", len(labels)), goerr.V("scores", len(scores)))
	}

	dist := model.NewDistribution(set)
	var total float64
	for i, label := range labels {
		if scores[i] <= 0 {
			continue
		}
		total += scores[i]

		name := strings.ToLower(strings.TrimSpace(label))
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		dist.Add(name, scores[i])
	}

	if total > 0 {
		for _, name := range set.Names() {
			dist.Set(name, dist.Weight(name)/total)
		}
	}

	label, conf, _ := dist.Top()
	return &model.Classification{Label: label, Confidence: conf, Distribution: dist}, nil
}

// checkLabel validates a single-label answer
func checkLabel(set *model.LabelSet, label string, confidence float64) (string, float64, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if !set.Contains(label) {
		return "", 0, goerr.Wrap(model.ErrOracle, "oracle returned unknown label", goerr.V("label", label))
	}
	return label, min(max(confidence, 0), 1), nil
}
