package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m-mizutani/emotent/pkg/server"
	"github.com/m-mizutani/emotent/pkg/service/mcp"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the HTTP API",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("EMOTENT_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, routingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API (and MCP on /mcp)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			rt, err := cfg.newApp(ctx, c)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			mcpServer := mcp.NewServer(rt.predictor, rt.curator, Version)
			handler := server.New(rt.predictor, rt.curator, server.WithMCP(mcpServer.Handler()))

			httpServer := newHTTPServer(ctx, addr, handler)

			errCh := make(chan error, 1)
			go func() {
				logging.From(ctx).Info("listening", "addr", addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))
				}
				return nil

			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown http server")
				}
				logging.From(ctx).Info("server stopped")
				return nil
			}
		},
	}
}

// newHTTPServer builds the API server. Requests inherit the logger and values
// of ctx but not its cancellation, so a shutdown signal lets in-flight
// predictions and their write-back finish during graceful shutdown.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return base },
	}
}
