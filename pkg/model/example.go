package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type ExampleID string

// NewExampleID generates a new unique ExampleID
func NewExampleID() ExampleID {
	return ExampleID(uuid.New().String())
}

// Tags is the opaque structure produced by the tagger
type Tags map[string]any

// Example is a confirmed observation kept in memory. It is immutable once appended.
type Example struct {
	ID        ExampleID
	Text      string
	Emotion   string
	Intent    string
	Tags      Tags
	AddedAt   time.Time
	Embedding firestore.Vector32

	// Seed marks entries installed from offline artifacts. Seeds are never persisted.
	Seed bool
}

// Label returns the label of the example for task
func (e *Example) Label(task Task) string {
	if task == TaskEmotion {
		return e.Emotion
	}
	return e.Intent
}

// NewExample builds an example stamped with a new ID and the current time
func NewExample(text, emotion, intent string, tags Tags, embedding []float32) *Example {
	if tags == nil {
		tags = Tags{}
	}
	return &Example{
		ID:        NewExampleID(),
		Text:      text,
		Emotion:   emotion,
		Intent:    intent,
		Tags:      tags,
		AddedAt:   time.Now().UTC(),
		Embedding: firestore.Vector32(embedding),
	}
}
