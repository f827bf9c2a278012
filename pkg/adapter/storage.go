package adapter

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage reads and writes objects of one Cloud Storage bucket
type Storage interface {
	// Put returns a writer for key. The object is committed on Close.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens key for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	w := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	return w, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage",
			goerr.Value("bucket", s.bucketName), goerr.Value("key", key))
	}

	return reader, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".jsonl"):
		return "application/jsonl"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ParseGCSURL splits gs://bucket/path/to/object into bucket and object key
func ParseGCSURL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", goerr.New("not a gs:// url", goerr.V("url", url))
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", goerr.New("gs:// url must name a bucket and an object", goerr.V("url", url))
	}
	return bucket, key, nil
}
