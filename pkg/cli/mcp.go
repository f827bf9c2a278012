package cli

import (
	"context"

	"github.com/m-mizutani/emotent/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, routingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Run as an MCP server over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the protocol, logs go to stderr
			ctx = cfg.setupLogger(ctx)

			rt, err := cfg.newApp(ctx, c)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			return mcp.NewServer(rt.predictor, rt.curator, Version).RunStdio(ctx)
		},
	}
}
