package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func predictCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, routingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)

	return &cli.Command{
		Name:      "predict",
		Usage:     "Predict emotion, intent and tags of a text",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return goerr.New("text is required")
			}

			rt, err := cfg.newApp(ctx, c)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			result, err := rt.predictor.Predict(ctx, text)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return goerr.Wrap(err, "failed to encode result")
			}
			return nil
		},
	}
}
