package examples

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/repository"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Export writes the persisted examples as JSON lines to a local path or gs:// location
func (u *UseCase) Export(ctx context.Context, location string) (int, error) {
	examples := u.store.Examples()

	w, err := u.openWriter(ctx, location)
	if err != nil {
		return 0, err
	}

	if err := repository.EncodeLog(w, examples); err != nil {
		_ = w.Close()
		return 0, goerr.Wrap(err, "failed to write examples", goerr.V("location", location))
	}
	if err := w.Close(); err != nil {
		return 0, goerr.Wrap(err, "failed to commit export", goerr.V("location", location))
	}

	logging.From(ctx).Info("memory exported", "location", location, "examples", len(examples))
	return len(examples), nil
}

// Import appends examples from a JSON lines export. Examples whose ID is
// already present are skipped. The whole file is parsed before anything is appended.
func (u *UseCase) Import(ctx context.Context, location string) (int, error) {
	r, err := u.openReader(ctx, location)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	examples, err := repository.DecodeLog(r)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read export", goerr.V("location", location))
	}

	known := make(map[model.ExampleID]struct{})
	for _, e := range u.store.Examples() {
		known[e.ID] = struct{}{}
	}

	imported := 0
	for _, e := range examples {
		if _, ok := known[e.ID]; ok {
			continue
		}
		if err := u.store.Append(ctx, e); err != nil {
			return imported, goerr.Wrap(err, "failed to import example", goerr.V("id", e.ID))
		}
		known[e.ID] = struct{}{}
		imported++
	}

	logging.From(ctx).Info("memory imported", "location", location, "imported", imported, "skipped", len(examples)-imported)
	return imported, nil
}
