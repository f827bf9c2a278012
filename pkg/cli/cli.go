package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version is the release version reported by the MCP server
var Version = "dev"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// .env is optional; values already in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{
			Code:    1,
			Message: "failed to load .env: " + err.Error(),
		}
	}

	cmd := &cli.Command{
		Name:    "emotent",
		Usage:   "Emotion and intent router backed by a memory of confirmed examples",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			predictCommand(),
			replCommand(),
			mcpCommand(),
			memoryCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
