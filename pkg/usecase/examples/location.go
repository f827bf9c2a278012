package examples

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

func isGCS(location string) bool {
	return strings.HasPrefix(location, "gs://")
}

// openReader opens a local path or a gs://bucket/object location
func (u *UseCase) openReader(ctx context.Context, location string) (io.ReadCloser, error) {
	if !isGCS(location) {
		f, err := os.Open(filepath.Clean(location))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open file", goerr.V("path", location))
		}
		return f, nil
	}

	bucket, key, err := adapter.ParseGCSURL(location)
	if err != nil {
		return nil, err
	}
	client, err := u.storage(ctx, bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bucket", goerr.V("bucket", bucket))
	}
	return client.Get(ctx, key)
}

// openWriter creates a local file or a gs://bucket/object. Data is committed on Close.
func (u *UseCase) openWriter(ctx context.Context, location string) (io.WriteCloser, error) {
	if !isGCS(location) {
		f, err := os.Create(filepath.Clean(location))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create file", goerr.V("path", location))
		}
		return f, nil
	}

	bucket, key, err := adapter.ParseGCSURL(location)
	if err != nil {
		return nil, err
	}
	client, err := u.storage(ctx, bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bucket", goerr.V("bucket", bucket))
	}
	return client.Put(ctx, key)
}
