package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// JSONL persists examples as newline-delimited JSON in a local file
type JSONL struct {
	path string
	mu   sync.Mutex
}

// NewJSONL creates a file-backed example log. The file is created on first append.
func NewJSONL(path string) *JSONL {
	return &JSONL{path: path}
}

// Path returns the log file path
func (r *JSONL) Path() string { return r.path }

func (r *JSONL) LoadExamples(ctx context.Context) ([]*model.Example, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open example log", goerr.V("path", r.path))
	}
	defer f.Close()

	examples, err := DecodeLog(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode example log", goerr.V("path", r.path))
	}
	return examples, nil
}

func (r *JSONL) AppendExample(ctx context.Context, example *model.Example) error {
	line, err := MarshalExample(example)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return goerr.Wrap(err, "failed to create log directory", goerr.V("dir", dir))
		}
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to open example log", goerr.V("path", r.path))
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return goerr.Wrap(err, "failed to append example", goerr.V("path", r.path))
	}
	if err := f.Sync(); err != nil {
		return goerr.Wrap(err, "failed to sync example log", goerr.V("path", r.path))
	}
	return nil
}

func (r *JSONL) ClearExamples(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return goerr.Wrap(err, "failed to remove example log", goerr.V("path", r.path))
	}
	return nil
}

// DecodeLog reads newline-delimited records. Blank lines are skipped; a
// malformed record or a final record without its newline fails the whole read.
func DecodeLog(r io.Reader) ([]*model.Example, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read example log")
	}

	var examples []*model.Example
	lineNo := 0
	for len(data) > 0 {
		lineNo++
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if len(bytes.TrimSpace(data)) == 0 {
				break
			}
			return nil, goerr.Wrap(model.ErrParse, "truncated record", goerr.V("line", lineNo))
		}

		line := bytes.TrimSpace(data[:i])
		data = data[i+1:]
		if len(line) == 0 {
			continue
		}

		example, err := UnmarshalExample(line)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse record", goerr.V("line", lineNo))
		}
		examples = append(examples, example)
	}

	return examples, nil
}

// EncodeLog writes examples as newline-delimited records
func EncodeLog(w io.Writer, examples []*model.Example) error {
	for _, e := range examples {
		line, err := MarshalExample(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return goerr.Wrap(err, "failed to write record", goerr.V("id", e.ID))
		}
	}
	return nil
}
