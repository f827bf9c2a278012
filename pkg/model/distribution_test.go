package model_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestDistributionUnknownLabel(t *testing.T) {
	d := model.DistributionFrom(model.IntentLabels, map[string]float64{
		"booking":      0.6,
		"no_such_kind": 0.4,
	})

	gt.Equal(t, d.Weight("booking"), 0.6)
	gt.Equal(t, d.Weight("no_such_kind"), 0.0)
	gt.False(t, d.Set("no_such_kind", 1.0))
	gt.False(t, d.Set("booking", -1))
	gt.Equal(t, d.Sum(), 0.6)
}

func TestDistributionNormalize(t *testing.T) {
	d := model.DistributionFrom(model.EmotionLabels, map[string]float64{
		"joy":     3,
		"sadness": 1,
	})

	n := d.Normalize()
	gt.True(t, math.Abs(n.Weight("joy")-0.75) < 1e-12)
	gt.True(t, math.Abs(n.Weight("sadness")-0.25) < 1e-12)
	gt.True(t, math.Abs(n.Sum()-1) < 1e-12)

	// original is untouched
	gt.Equal(t, d.Weight("joy"), 3.0)
}

func TestDistributionNormalizeZero(t *testing.T) {
	d := model.NewDistribution(model.EmotionLabels)
	n := d.Normalize()
	gt.True(t, n.IsZero())
	gt.Equal(t, n.Sum(), 0.0)
	gt.Equal(t, len(n.Map()), 0)
}

func TestDistributionTop(t *testing.T) {
	t.Run("largest weight wins", func(t *testing.T) {
		d := model.DistributionFrom(model.IntentLabels, map[string]float64{
			"booking":    0.2,
			"hotel_info": 0.7,
		})
		label, w, ok := d.Top()
		gt.True(t, ok)
		gt.Equal(t, label, "hotel_info")
		gt.Equal(t, w, 0.7)
	})

	t.Run("ties go to the smallest label", func(t *testing.T) {
		d := model.DistributionFrom(model.IntentLabels, map[string]float64{
			"service_request": 0.5,
			"hotel_info":      0.5,
			"booking":         0.0,
		})
		label, _, ok := d.Top()
		gt.True(t, ok)
		gt.Equal(t, label, "hotel_info")
	})

	t.Run("zero distribution has no top", func(t *testing.T) {
		_, _, ok := model.NewDistribution(model.IntentLabels).Top()
		gt.False(t, ok)

		var unset model.Distribution
		_, _, ok = unset.Top()
		gt.False(t, ok)
	})
}

func TestDistributionMarshalJSON(t *testing.T) {
	d := model.DistributionFrom(model.EmotionLabels, map[string]float64{"joy": 1})
	raw, err := json.Marshal(d)
	gt.NoError(t, err)
	gt.Equal(t, string(raw), `{"joy":1}`)
}

func TestLabelSetSorted(t *testing.T) {
	s := model.NewLabelSet("b", "a", "c", "a", "")
	gt.Equal(t, s.Len(), 3)
	gt.Equal(t, s.Name(0), "a")
	gt.Equal(t, s.Name(2), "c")
	i, ok := s.Index("b")
	gt.True(t, ok)
	gt.Equal(t, i, 1)
}

func TestActionFromIntent(t *testing.T) {
	testCases := []struct {
		intent string
		action model.Action
	}{
		{"service_request", model.ActionRequestService},
		{"hotel_info", model.ActionAskInfo},
		{"internal_experience", model.ActionAskInfo},
		{"external_experience", model.ActionAskInfo},
		{"booking", model.ActionBook},
		{"off_topic", model.ActionOther},
		{"feedback", model.ActionOther},
		{"", model.ActionOther},
	}

	for _, tc := range testCases {
		t.Run(tc.intent, func(t *testing.T) {
			gt.Equal(t, model.ActionFromIntent(tc.intent), tc.action)
		})
	}
}
