package oracle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/service/oracle"
	"github.com/m-mizutani/gt"
)

func TestClaudeFallback(t *testing.T) {
	testCases := []struct {
		name    string
		reply   string
		label   string
		conf    float64
		wantErr bool
	}{
		{"plain json", `{"intent":"booking","confidence":0.91}`, "booking", 0.91, false},
		{"fenced json", "```json\n{\"intent\": \"service_request\", \"confidence\": 0.7}\n```", "service_request", 0.7, false},
		{"confidence clamped", `Sure: {"intent":"off_topic","confidence":1.4}`, "off_topic", 1.0, false},
		{"unknown label", `{"intent":"weather","confidence":0.9}`, "", 0, true},
		{"no json", `I think it's a booking.`, "", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotSystem string
			client := &mockClaude{
				completeFunc: func(ctx context.Context, system, prompt string) (string, error) {
					gotSystem = system
					return tc.reply, nil
				},
			}

			label, conf, err := oracle.NewClaudeFallback(client).ClassifyIntent(context.Background(), "text")
			gt.S(t, gotSystem).Contains("hotel_info")
			if tc.wantErr {
				gt.True(t, errors.Is(err, model.ErrOracle))
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, label, tc.label)
			gt.Equal(t, conf, tc.conf)
		})
	}
}

func TestClaudeFallbackAPIError(t *testing.T) {
	client := &mockClaude{
		completeFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return "", errors.New("overloaded")
		},
	}

	_, _, err := oracle.NewClaudeFallback(client).ClassifyIntent(context.Background(), "text")
	gt.True(t, errors.Is(err, model.ErrOracle))
}
