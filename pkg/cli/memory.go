package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/repository"
	"github.com/m-mizutani/emotent/pkg/service/oracle"
	"github.com/m-mizutani/emotent/pkg/usecase/examples"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Manage confirmed examples",
		Commands: []*cli.Command{
			memoryListCommand(),
			memoryAddCommand(),
			memoryClearCommand(),
			memorySeedCommand(),
			memoryExportCommand(),
			memoryImportCommand(),
		},
	}
}

// openExamples loads the store and wraps it without oracles
func (cfg *config) openExamples(ctx context.Context) (*examples.UseCase, func(), error) {
	store, cleanup, err := cfg.newStore(ctx)
	if err != nil {
		return nil, cleanup, err
	}
	return examples.New(store, nil), cleanup, nil
}

type exampleView struct {
	ID      model.ExampleID `json:"id"`
	Text    string          `json:"text"`
	Emotion string          `json:"emotion"`
	Intent  string          `json:"intent"`
	Tags    model.Tags      `json:"tags"`
	AddedAt string          `json:"added_at"`
}

func memoryListCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print examples as JSON lines",
			Destination: &asJSON,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List persisted examples",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			uc, cleanup, err := cfg.openExamples(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			list := uc.List(ctx)
			if asJSON {
				enc := json.NewEncoder(w)
				for _, e := range list {
					if err := enc.Encode(exampleView{
						ID:      e.ID,
						Text:    e.Text,
						Emotion: e.Emotion,
						Intent:  e.Intent,
						Tags:    e.Tags,
						AddedAt: e.AddedAt.Format(time.RFC3339Nano),
					}); err != nil {
						return goerr.Wrap(err, "failed to encode example")
					}
				}
				return nil
			}

			if len(list) == 0 {
				fmt.Fprintf(w, "No examples found\n")
				return nil
			}
			for _, e := range list {
				fmt.Fprintf(w, "%s  %s  %-9s %-17s %s\n",
					e.ID, e.AddedAt.Format("2006-01-02 15:04"), e.Emotion, e.Intent, e.Text)
			}
			fmt.Fprintf(w, "\nTotal: %d examples\n", len(list))
			return nil
		},
	}
}

func memoryAddCommand() *cli.Command {
	var (
		cfg     config
		emotion string
		intent  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "emotion",
			Aliases:     []string{"e"},
			Usage:       "Confirmed emotion label",
			Required:    true,
			Destination: &emotion,
		},
		&cli.StringFlag{
			Name:        "intent",
			Aliases:     []string{"i"},
			Usage:       "Confirmed intent label",
			Required:    true,
			Destination: &intent,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Store a human-confirmed example",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() != 1 {
				return goerr.New("exactly one text argument is required")
			}

			store, cleanup, err := cfg.newStore(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			tg, err := cfg.newTagger(ctx)
			if err != nil {
				return err
			}

			uc := examples.New(store, oracle.NewGeminiEmbedder(gemini), examples.WithTagger(tg))
			example, err := uc.Remember(ctx, c.Args().First(), emotion, intent)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Stored example %s (%s, %s, action=%v)\n",
				example.ID, example.Emotion, example.Intent, example.Tags["action"])
			return nil
		},
	}
}

func memoryClearCommand() *cli.Command {
	var (
		cfg config
		yes bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "yes",
			Aliases:     []string{"y"},
			Usage:       "Do not ask for confirmation",
			Destination: &yes,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Erase every persisted example",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if !yes {
				return goerr.New("refusing to clear memory without --yes", goerr.V("backend", cfg.backend))
			}

			uc, cleanup, err := cfg.openExamples(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			n, err := uc.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Removed %d examples\n", n)
			return nil
		},
	}
}

func memorySeedCommand() *cli.Command {
	var (
		cfg   config
		query string
		task  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "BigQuery SQL returning text, label and optional embedding columns",
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "task",
			Usage:       "Task of the query rows (emotion, intent)",
			Value:       string(model.TaskIntent),
			Destination: &task,
		},
	}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, oracleFlags(&cfg)...)
	flags = append(flags, bigqueryFlags(&cfg)...)

	return &cli.Command{
		Name:      "seed",
		Usage:     "Check a seed artifact (path or gs:// URL) or BigQuery seed query",
		ArgsUsage: "[location]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			location := c.Args().First()
			if (location == "") == (query == "") {
				return goerr.New("either a location or --query is required")
			}

			// seeds are never persisted, so install into a scratch store
			store := memory.New(repository.NewMemory())

			var embedder interfaces.Embedder
			if cfg.geminiProject != "" {
				gemini, err := cfg.newGemini(ctx)
				if err != nil {
					return err
				}
				embedder = oracle.NewGeminiEmbedder(gemini)
			}

			var (
				n   int
				err error
			)
			if query != "" {
				bq, bqErr := cfg.newBigQuery(ctx)
				if bqErr != nil {
					return bqErr
				}
				uc := examples.New(store, embedder,
					examples.WithBigQuery(bq),
					examples.WithMaxScanBytes(cfg.maxScanBytes),
				)
				n, err = uc.SeedFromQuery(ctx, model.Task(task), query)
			} else {
				n, err = examples.New(store, embedder).Seed(ctx, location)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Seed is valid: %d entries, dimension %d\n", n, store.Dimension())
			return nil
		},
	}
}

func memoryExportCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "export",
		Usage:     "Write persisted examples as JSON lines to a path or gs:// URL",
		ArgsUsage: "<location>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() != 1 {
				return goerr.New("exactly one location is required")
			}

			uc, cleanup, err := cfg.openExamples(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			n, err := uc.Export(ctx, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Exported %d examples\n", n)
			return nil
		},
	}
}

func memoryImportCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, loggingFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)

	return &cli.Command{
		Name:      "import",
		Usage:     "Append examples from a JSON lines export, skipping known IDs",
		ArgsUsage: "<location>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() != 1 {
				return goerr.New("exactly one location is required")
			}

			uc, cleanup, err := cfg.openExamples(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			n, err := uc.Import(ctx, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Imported %d examples\n", n)
			return nil
		},
	}
}
