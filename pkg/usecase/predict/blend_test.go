package predict_test

import (
	"testing"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/usecase/predict"
	"github.com/m-mizutani/gt"
)

func TestBlendEndpoints(t *testing.T) {
	a := model.DistributionFrom(model.IntentLabels, map[string]float64{"booking": 3, "hotel_info": 1})
	b := model.DistributionFrom(model.IntentLabels, map[string]float64{"off_topic": 2, "booking": 2})

	t.Run("alpha 1 is normalized a", func(t *testing.T) {
		got := predict.Blend(a, b, 1.0)
		gt.True(t, approx(got.Weight("booking"), 0.75))
		gt.True(t, approx(got.Weight("hotel_info"), 0.25))
		gt.Equal(t, got.Weight("off_topic"), 0.0)
	})

	t.Run("alpha 0 is normalized b", func(t *testing.T) {
		got := predict.Blend(a, b, 0.0)
		gt.True(t, approx(got.Weight("booking"), 0.5))
		gt.True(t, approx(got.Weight("off_topic"), 0.5))
		gt.Equal(t, got.Weight("hotel_info"), 0.0)
	})
}

func TestBlendSumsToOne(t *testing.T) {
	a := model.DistributionFrom(model.EmotionLabels, map[string]float64{"joy": 0.2, "fear": 0.1})
	b := model.DistributionFrom(model.EmotionLabels, map[string]float64{"sadness": 5})

	for _, alpha := range []float64{0, 0.1, 0.3, 0.5, 0.7, 0.99, 1} {
		gt.True(t, approx(predict.Blend(a, b, alpha).Sum(), 1.0)).Describe("blend must sum to 1")
	}
}

func TestBlendZero(t *testing.T) {
	a := model.NewDistribution(model.IntentLabels)
	b := model.NewDistribution(model.IntentLabels)

	got := predict.Blend(a, b, 0.7)
	gt.True(t, got.IsZero())
	gt.Equal(t, got.Sum(), 0.0)

	_, _, ok := got.Top()
	gt.False(t, ok)

	gt.True(t, predict.Blend(model.Distribution{}, model.Distribution{}, 0.5).IsZero())
}

func TestBlendBookingScenario(t *testing.T) {
	modelDist := model.DistributionFrom(model.IntentLabels, map[string]float64{"booking": 0.6, "hotel_info": 0.4})
	memDist := model.DistributionFrom(model.IntentLabels, map[string]float64{"booking": 1.0})

	got := predict.Blend(modelDist, memDist, 0.7)
	gt.True(t, approx(got.Weight("booking"), 0.72))
	gt.True(t, approx(got.Weight("hotel_info"), 0.28))
	gt.Equal(t, len(got.Map()), 2)

	label, conf, ok := got.Top()
	gt.True(t, ok)
	gt.Equal(t, label, "booking")
	gt.True(t, approx(conf, 0.72))
}

func TestBlendDifferentLabelSets(t *testing.T) {
	small := model.NewLabelSet("a", "b")
	other := model.NewLabelSet("b", "c")

	got := predict.Blend(
		model.DistributionFrom(small, map[string]float64{"a": 1}),
		model.DistributionFrom(other, map[string]float64{"c": 1}),
		0.5,
	)
	gt.True(t, approx(got.Weight("a"), 0.5))
	gt.True(t, approx(got.Weight("c"), 0.5))
	gt.Equal(t, got.Weight("b"), 0.0)
}
