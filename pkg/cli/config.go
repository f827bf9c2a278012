package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/emotent/pkg/adapter"
	"github.com/m-mizutani/emotent/pkg/interfaces"
	"github.com/m-mizutani/emotent/pkg/memory"
	"github.com/m-mizutani/emotent/pkg/model"
	"github.com/m-mizutani/emotent/pkg/repository"
	"github.com/m-mizutani/emotent/pkg/service/oracle"
	"github.com/m-mizutani/emotent/pkg/service/tagger"
	"github.com/m-mizutani/emotent/pkg/usecase/examples"
	"github.com/m-mizutani/emotent/pkg/usecase/predict"
	"github.com/m-mizutani/emotent/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Routing
	configFile        string
	alphaEmotion      float64
	alphaIntent       float64
	strategy          string
	distanceThreshold float64
	storeThreshold    float64
	k                 int64
	autoStore         bool
	oracleTimeout     time.Duration

	// Memory backend
	backend             string
	memoryPath          string
	firestoreProject    string
	firestoreDatabase   string
	firestoreCollection string
	sqlDSN              string
	seed                string

	// Oracles
	geminiProject   string
	geminiLocation  string
	geminiModel     string
	embeddingModel  string
	embeddingDims   int64
	emotionURL      string
	intentURL       string
	intentZeroShot  bool
	emotionAliases  []string
	intentAliases   []string
	inferenceToken  string
	fallback        string
	anthropicAPIKey string
	claudeModel     string

	// Tagging
	tagPolicyDir string

	// BigQuery
	bigqueryProject string
	maxScanBytes    int64
}

// loggingFlags returns log output flags
func loggingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("EMOTENT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("EMOTENT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// routingFlags returns ensemble routing parameters
func routingFlags(cfg *config) []cli.Flag {
	d := predict.DefaultParams()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with routing parameters; explicit flags take precedence",
			Sources:     cli.EnvVars("EMOTENT_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.FloatFlag{
			Name:        "alpha-emotion",
			Usage:       "Weight of the emotion classifier against memory (0-1)",
			Value:       d.AlphaEmotion,
			Sources:     cli.EnvVars("EMOTENT_ALPHA_EMOTION"),
			Destination: &cfg.alphaEmotion,
		},
		&cli.FloatFlag{
			Name:        "alpha-intent",
			Usage:       "Weight of the intent classifier against memory (0-1)",
			Value:       d.AlphaIntent,
			Sources:     cli.EnvVars("EMOTENT_ALPHA_INTENT"),
			Destination: &cfg.alphaIntent,
		},
		&cli.StringFlag{
			Name:        "intent-strategy",
			Usage:       "Intent strategy (blend, gated)",
			Value:       string(d.Strategy),
			Sources:     cli.EnvVars("EMOTENT_INTENT_STRATEGY"),
			Destination: &cfg.strategy,
		},
		&cli.FloatFlag{
			Name:        "distance-threshold",
			Usage:       "Max squared L2 distance to trust the nearest example (gated strategy)",
			Value:       d.DistanceThreshold,
			Sources:     cli.EnvVars("EMOTENT_DISTANCE_THRESHOLD"),
			Destination: &cfg.distanceThreshold,
		},
		&cli.FloatFlag{
			Name:        "store-threshold",
			Usage:       "Min confidence of both tasks to store a prediction",
			Value:       d.StoreThreshold,
			Sources:     cli.EnvVars("EMOTENT_STORE_THRESHOLD"),
			Destination: &cfg.storeThreshold,
		},
		&cli.IntFlag{
			Name:        "k",
			Usage:       "Number of neighbors for memory label distributions",
			Value:       int64(d.K),
			Sources:     cli.EnvVars("EMOTENT_K"),
			Destination: &cfg.k,
		},
		&cli.BoolFlag{
			Name:        "auto-store",
			Usage:       "Store confident predictions as new examples",
			Value:       d.AutoStore,
			Sources:     cli.EnvVars("EMOTENT_AUTO_STORE"),
			Destination: &cfg.autoStore,
		},
		&cli.DurationFlag{
			Name:        "oracle-timeout",
			Usage:       "Timeout of each classifier or fallback call",
			Value:       d.OracleTimeout,
			Sources:     cli.EnvVars("EMOTENT_ORACLE_TIMEOUT"),
			Destination: &cfg.oracleTimeout,
		},
	}
}

// memoryFlags returns example store backend flags
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Example store backend (jsonl, firestore, sqlite, postgres, memory)",
			Value:       "jsonl",
			Sources:     cli.EnvVars("EMOTENT_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "memory-path",
			Usage:       "Path of the JSON lines example log",
			Value:       "data/memory.jsonl",
			Sources:     cli.EnvVars("EMOTENT_MEMORY_PATH"),
			Destination: &cfg.memoryPath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("EMOTENT_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("EMOTENT_FIRESTORE_DATABASE", "FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection of examples",
			Value:       "examples",
			Sources:     cli.EnvVars("EMOTENT_FIRESTORE_COLLECTION"),
			Destination: &cfg.firestoreCollection,
		},
		&cli.StringFlag{
			Name:        "sql-dsn",
			Usage:       "DSN for sqlite (file path) or postgres backends",
			Sources:     cli.EnvVars("EMOTENT_SQL_DSN"),
			Destination: &cfg.sqlDSN,
		},
		&cli.StringFlag{
			Name:        "seed",
			Usage:       "Seed artifact (local path or gs://bucket/object) installed at startup",
			Sources:     cli.EnvVars("EMOTENT_SEED"),
			Destination: &cfg.seed,
		},
	}
}

// oracleFlags returns embedder, classifier and fallback flags
func oracleFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("EMOTENT_GEMINI_PROJECT", "GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("EMOTENT_GEMINI_LOCATION", "GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("EMOTENT_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("EMOTENT_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding dimensions (must match stored examples)",
			Value:       768,
			Sources:     cli.EnvVars("EMOTENT_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDims,
		},
		&cli.StringFlag{
			Name:        "emotion-url",
			Usage:       "HTTP inference endpoint for emotion; Gemini is used when empty",
			Sources:     cli.EnvVars("EMOTENT_EMOTION_URL"),
			Destination: &cfg.emotionURL,
		},
		&cli.StringFlag{
			Name:        "intent-url",
			Usage:       "HTTP inference endpoint for intent; Gemini is used when empty",
			Sources:     cli.EnvVars("EMOTENT_INTENT_URL"),
			Destination: &cfg.intentURL,
		},
		&cli.BoolFlag{
			Name:        "intent-zero-shot",
			Usage:       "Send intent labels as zero-shot candidate labels",
			Sources:     cli.EnvVars("EMOTENT_INTENT_ZERO_SHOT"),
			Destination: &cfg.intentZeroShot,
		},
		&cli.StringSliceFlag{
			Name:        "emotion-label-alias",
			Usage:       "Map an emotion endpoint label to a known label (from=to, repeatable)",
			Sources:     cli.EnvVars("EMOTENT_EMOTION_LABEL_ALIAS"),
			Destination: &cfg.emotionAliases,
		},
		&cli.StringSliceFlag{
			Name:        "intent-label-alias",
			Usage:       "Map an intent endpoint label to a known label (from=to, repeatable)",
			Sources:     cli.EnvVars("EMOTENT_INTENT_LABEL_ALIAS"),
			Destination: &cfg.intentAliases,
		},
		&cli.StringFlag{
			Name:        "inference-token",
			Usage:       "Bearer token for HTTP inference endpoints",
			Sources:     cli.EnvVars("EMOTENT_INFERENCE_TOKEN", "HF_TOKEN"),
			Destination: &cfg.inferenceToken,
		},
		&cli.StringFlag{
			Name:        "fallback",
			Usage:       "Fallback intent oracle for the gated strategy (gemini, claude)",
			Value:       "gemini",
			Sources:     cli.EnvVars("EMOTENT_FALLBACK"),
			Destination: &cfg.fallback,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model for the fallback oracle",
			Value:       "claude-sonnet-4-5",
			Sources:     cli.EnvVars("EMOTENT_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "tag-policy",
			Usage:       "Directory of rego files overriding tags (package tag)",
			Sources:     cli.EnvVars("EMOTENT_TAG_POLICY"),
			Destination: &cfg.tagPolicyDir,
		},
	}
}

// bigqueryFlags returns flags for seeding from BigQuery
func bigqueryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID running seed queries",
			Sources:     cli.EnvVars("EMOTENT_BIGQUERY_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.IntFlag{
			Name:        "max-scan-bytes",
			Usage:       "Reject seed queries scanning more bytes (0 disables)",
			Value:       10 << 30,
			Sources:     cli.EnvVars("EMOTENT_MAX_SCAN_BYTES"),
			Destination: &cfg.maxScanBytes,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.NewWithFormat(cfg.logLevel, logging.Format(cfg.logFormat), os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// params merges defaults, the YAML file and explicitly set flags, in that order
func (cfg *config) params(c *cli.Command) (predict.Params, error) {
	p := predict.DefaultParams()

	if cfg.configFile != "" {
		data, err := os.ReadFile(cfg.configFile)
		if err != nil {
			return p, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configFile))
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, goerr.Wrap(model.ErrInvalidConfig, "failed to parse config file",
				goerr.V("path", cfg.configFile), goerr.V("cause", err.Error()))
		}
	}

	if cfg.configFile == "" || c.IsSet("alpha-emotion") {
		p.AlphaEmotion = cfg.alphaEmotion
	}
	if cfg.configFile == "" || c.IsSet("alpha-intent") {
		p.AlphaIntent = cfg.alphaIntent
	}
	if cfg.configFile == "" || c.IsSet("intent-strategy") {
		p.Strategy = predict.Strategy(cfg.strategy)
	}
	if cfg.configFile == "" || c.IsSet("distance-threshold") {
		p.DistanceThreshold = cfg.distanceThreshold
	}
	if cfg.configFile == "" || c.IsSet("store-threshold") {
		p.StoreThreshold = cfg.storeThreshold
	}
	if cfg.configFile == "" || c.IsSet("k") {
		p.K = int(cfg.k)
	}
	if cfg.configFile == "" || c.IsSet("auto-store") {
		p.AutoStore = cfg.autoStore
	}
	if cfg.configFile == "" || c.IsSet("oracle-timeout") {
		p.OracleTimeout = cfg.oracleTimeout
	}

	return p, p.Validate()
}

// newExampleLog creates the persistence backend of the example store
func (cfg *config) newExampleLog(ctx context.Context) (interfaces.ExampleLog, func(), error) {
	nop := func() {}

	switch cfg.backend {
	case "jsonl":
		if cfg.memoryPath == "" {
			return nil, nop, goerr.New("memory-path is required for jsonl backend")
		}
		return repository.NewJSONL(cfg.memoryPath), nop, nil

	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, nop, goerr.New("firestore-project is required for firestore backend")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase,
			repository.WithCollection(cfg.firestoreCollection))
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create firestore repository")
		}
		return repo, func() { _ = repo.Close() }, nil

	case "sqlite", "postgres":
		if cfg.sqlDSN == "" {
			return nil, nop, goerr.New("sql-dsn is required", goerr.V("backend", cfg.backend))
		}
		dialect := repository.SQLite
		if cfg.backend == "postgres" {
			dialect = repository.Postgres
		}
		repo, err := repository.NewSQL(ctx, dialect, cfg.sqlDSN)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create sql repository", goerr.V("backend", cfg.backend))
		}
		return repo, func() { _ = repo.Close() }, nil

	case "memory":
		return repository.NewMemory(), nop, nil

	default:
		return nil, nop, goerr.Wrap(model.ErrInvalidConfig, "unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newStore loads the example store from its backend
func (cfg *config) newStore(ctx context.Context) (*memory.Store, func(), error) {
	log, cleanup, err := cfg.newExampleLog(ctx)
	if err != nil {
		return nil, cleanup, err
	}

	store := memory.New(log)
	if err := store.Load(ctx); err != nil {
		cleanup()
		return nil, func() {}, goerr.Wrap(err, "failed to load examples", goerr.V("backend", cfg.backend))
	}
	return store, cleanup, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.geminiModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithEmbeddingDimensions(int(cfg.embeddingDims)),
	)
}

// newClassifier returns the HTTP classifier when an endpoint is set, else Gemini
func (cfg *config) newClassifier(gemini adapter.Gemini, task model.Task) (interfaces.Classifier, error) {
	url, aliases := cfg.emotionURL, cfg.emotionAliases
	if task == model.TaskIntent {
		url, aliases = cfg.intentURL, cfg.intentAliases
	}

	if url != "" {
		opts, err := oracle.ParseLabelAliases(task, aliases)
		if err != nil {
			return nil, err
		}
		opts = append(opts, oracle.WithToken(cfg.inferenceToken))
		if task == model.TaskIntent && cfg.intentZeroShot {
			opts = append(opts, oracle.WithZeroShot())
		}
		return oracle.NewHTTPClassifier(url, task, opts...)
	}

	return oracle.NewGeminiClassifier(gemini, task)
}

// newFallback creates the fallback intent oracle
func (cfg *config) newFallback(gemini adapter.Gemini) (interfaces.FallbackOracle, error) {
	switch cfg.fallback {
	case "gemini":
		return oracle.NewGeminiFallback(gemini)
	case "claude":
		claude, err := adapter.NewClaude(cfg.anthropicAPIKey, adapter.WithClaudeModel(cfg.claudeModel))
		if err != nil {
			return nil, err
		}
		return oracle.NewClaudeFallback(claude), nil
	default:
		return nil, goerr.Wrap(model.ErrInvalidConfig, "unknown fallback oracle", goerr.V("fallback", cfg.fallback))
	}
}

// newTagger creates the tagger with the optional rego overlay
func (cfg *config) newTagger(ctx context.Context) (*tagger.Tagger, error) {
	if cfg.tagPolicyDir == "" {
		return tagger.New(), nil
	}
	policy, err := tagger.LoadPolicy(ctx, cfg.tagPolicyDir)
	if err != nil {
		return nil, err
	}
	return tagger.New(tagger.WithPolicy(policy)), nil
}

// newBigQuery creates a BigQuery adapter when a project is configured
func (cfg *config) newBigQuery(ctx context.Context) (adapter.BigQuery, error) {
	if cfg.bigqueryProject == "" {
		return nil, goerr.New("bigquery-project is required")
	}
	return adapter.NewBigQuery(ctx, cfg.bigqueryProject)
}

// app is the wired application shared by the serving commands
type app struct {
	predictor *predict.UseCase
	curator   *examples.UseCase
	cleanup   func()
}

// newApp builds the store, oracles and use cases
func (cfg *config) newApp(ctx context.Context, c *cli.Command) (*app, error) {
	params, err := cfg.params(c)
	if err != nil {
		return nil, err
	}

	store, cleanup, err := cfg.newStore(ctx)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			cleanup()
		}
	}()

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}
	embedder := oracle.NewGeminiEmbedder(gemini)

	tg, err := cfg.newTagger(ctx)
	if err != nil {
		return nil, err
	}

	emotion, err := cfg.newClassifier(gemini, model.TaskEmotion)
	if err != nil {
		return nil, err
	}

	opts := []predict.Option{
		predict.WithParams(params),
		predict.WithTagger(tg),
	}

	var intent interfaces.Classifier
	if params.Strategy == predict.StrategyGated {
		fallback, err := cfg.newFallback(gemini)
		if err != nil {
			return nil, err
		}
		opts = append(opts, predict.WithFallback(fallback))
	} else {
		intent, err = cfg.newClassifier(gemini, model.TaskIntent)
		if err != nil {
			return nil, err
		}
	}

	predictor, err := predict.New(store, embedder, emotion, intent, opts...)
	if err != nil {
		return nil, err
	}

	curator := examples.New(store, embedder, examples.WithTagger(tg))
	if cfg.seed != "" {
		if _, err := curator.Seed(ctx, cfg.seed); err != nil {
			return nil, goerr.Wrap(err, "failed to seed memory", goerr.V("seed", cfg.seed))
		}
	}

	logging.From(ctx).Info("router ready",
		"backend", cfg.backend,
		"examples", len(store.Examples()),
		"indexed", store.Len(),
		"strategy", params.Strategy,
		"auto_store", params.AutoStore,
	)

	ok = true
	return &app{predictor: predictor, curator: curator, cleanup: cleanup}, nil
}
