package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func replCommand() *cli.Command {
	var (
		cfg         config
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "Readline history file",
			Value:       filepath.Join(os.TempDir(), "emotent_history"),
			Sources:     cli.EnvVars("EMOTENT_HISTORY_FILE"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, routingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)

	return &cli.Command{
		Name:  "repl",
		Usage: "Interactive prediction with manual confirmation",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			rt, err := cfg.newApp(ctx, c)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Type a message to predict. /remember <emotion> <intent> stores the last message, /list shows examples, /exit quits.\n")

			var last string
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read line")
				}

				line = strings.TrimSpace(line)
				switch {
				case line == "":
					continue

				case line == "exit" || line == "/exit" || line == "/quit":
					return nil

				case line == "/list":
					for _, e := range rt.curator.List(ctx) {
						fmt.Fprintf(w, "%s  %-9s %-17s %s\n", e.ID, e.Emotion, e.Intent, e.Text)
					}

				case strings.HasPrefix(line, "/remember"):
					args := strings.Fields(strings.TrimPrefix(line, "/remember"))
					if last == "" || len(args) != 2 {
						fmt.Fprintf(w, "usage: /remember <emotion> <intent> (after a prediction)\n")
						continue
					}
					example, err := rt.curator.Remember(ctx, last, args[0], args[1])
					if err != nil {
						fmt.Fprintf(w, "error: %v\n", err)
						continue
					}
					fmt.Fprintf(w, "remembered %s\n", example.ID)

				default:
					result, err := predictWithSpinner(ctx, rt, line)
					if err != nil {
						fmt.Fprintf(w, "error: %v\n", err)
						continue
					}
					last = line
					printResult(w, result)
				}
			}
		},
	}
}

func predictWithSpinner(ctx context.Context, rt *app, text string) (*model.Result, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " predicting..."
	s.Start()
	defer s.Stop()

	return rt.predictor.Predict(ctx, text)
}

func printResult(w io.Writer, r *model.Result) {
	fmt.Fprintf(w, "emotion: %s (%.2f, %s)\n", r.Emotion.Label, r.Emotion.Confidence, r.Emotion.Source)
	fmt.Fprintf(w, "intent:  %s (%.2f, %s)\n", r.Intent.Label, r.Intent.Confidence, r.Intent.Source)
	for _, k := range slices.Sorted(maps.Keys(r.Tags)) {
		fmt.Fprintf(w, "  %s: %v\n", k, r.Tags[k])
	}
}
