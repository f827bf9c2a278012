package cli

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestHTTPServerBaseContextOutlivesSignal(t *testing.T) {
	logger := logging.New("info", &bytes.Buffer{})
	ctx, cancel := context.WithCancel(logging.With(context.Background(), logger))

	srv := newHTTPServer(ctx, "127.0.0.1:0", http.NotFoundHandler())
	cancel()
	gt.Error(t, ctx.Err())

	base := srv.BaseContext(nil)
	gt.NoError(t, base.Err())
	gt.True(t, base.Done() == nil)
	gt.True(t, logging.From(base) == logger)
}
