package repository_test

import (
	"github.com/m-mizutani/emotent/pkg/model"
)

func newExample(text, emotion, intent string, vec ...float32) *model.Example {
	return model.NewExample(text, emotion, intent, model.Tags{"action": "other"}, vec)
}
