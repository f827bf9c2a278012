package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "examples"

// exampleDoc is the Firestore document layout of an example
type exampleDoc struct {
	ID        string             `firestore:"id"`
	Text      string             `firestore:"text"`
	Emotion   string             `firestore:"emotion"`
	Intent    string             `firestore:"intent"`
	Tags      map[string]any     `firestore:"tags"`
	AddedAt   time.Time          `firestore:"added_at"`
	Embedding firestore.Vector32 `firestore:"embedding"`
}

// Firestore persists examples as documents of one collection, ordered by added_at
type Firestore struct {
	client     *firestore.Client
	collection string
}

// FirestoreOption is a functional option for Firestore
type FirestoreOption func(*Firestore)

// WithCollection sets the collection name (default "examples")
func WithCollection(name string) FirestoreOption {
	return func(r *Firestore) {
		r.collection = name
	}
}

// NewFirestore creates a Firestore-backed example log
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	r := &Firestore{
		client:     client,
		collection: defaultCollection,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) LoadExamples(ctx context.Context) ([]*model.Example, error) {
	iter := r.client.Collection(r.collection).OrderBy("added_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var examples []*model.Example
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate examples", goerr.V("collection", r.collection))
		}

		var d exampleDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(model.ErrParse, "failed to decode example document",
				goerr.V("doc", doc.Ref.ID), goerr.V("cause", err.Error()))
		}
		if d.Text == "" || len(d.Embedding) == 0 {
			return nil, goerr.Wrap(model.ErrParse, "incomplete example document", goerr.V("doc", doc.Ref.ID))
		}

		id := d.ID
		if id == "" {
			id = doc.Ref.ID
		}
		examples = append(examples, &model.Example{
			ID:        model.ExampleID(id),
			Text:      d.Text,
			Emotion:   d.Emotion,
			Intent:    d.Intent,
			Tags:      model.Tags(d.Tags),
			AddedAt:   d.AddedAt.UTC(),
			Embedding: d.Embedding,
		})
	}

	return examples, nil
}

func (r *Firestore) AppendExample(ctx context.Context, example *model.Example) error {
	tags := map[string]any(example.Tags)
	if tags == nil {
		tags = map[string]any{}
	}
	doc := exampleDoc{
		ID:        string(example.ID),
		Text:      example.Text,
		Emotion:   example.Emotion,
		Intent:    example.Intent,
		Tags:      tags,
		AddedAt:   example.AddedAt,
		Embedding: example.Embedding,
	}

	ref := r.client.Collection(r.collection).Doc(string(example.ID))
	if _, err := ref.Create(ctx, doc); err != nil {
		// IDs are unique per example, so an existing document is an earlier attempt of this write
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return goerr.Wrap(err, "failed to create example document", goerr.V("id", example.ID))
	}
	return nil
}

func (r *Firestore) ClearExamples(ctx context.Context) error {
	refs := r.client.Collection(r.collection).DocumentRefs(ctx)
	bw := r.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	var ids []string
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to list example documents", goerr.V("collection", r.collection))
		}
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("doc", ref.ID))
		}
		jobs = append(jobs, job)
		ids = append(ids, ref.ID)
	}

	// End flushes every queued write; failures are only visible per job
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete example document",
				goerr.V("doc", ids[i]), goerr.V("queued", len(jobs)))
		}
	}
	return nil
}
