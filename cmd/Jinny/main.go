package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/Jinny/internal/api"
	"github.com/BTreeMap/Jinny/internal/genai"
	"github.com/BTreeMap/Jinny/internal/lockfile"
	"github.com/BTreeMap/Jinny/internal/recommend"
	"github.com/BTreeMap/Jinny/internal/store"
	"github.com/BTreeMap/Jinny/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Jinny state data
	DefaultStateDir = "/var/lib/jinny"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "jinny.db"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)

	flags, err := parseCommandLineFlags(config, args)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		return 2
	}
	initializeLogger(*flags.logLevel)

	// SQLite files must not be shared between processes
	if store.DetectDSNType(*flags.dbDSN) == store.DriverSQLite {
		lock, err := lockfile.Acquire(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			return 1
		}
		defer lock.Release()
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts, err := buildAPIOptions(flags)
	if err != nil {
		slog.Error("Failed to build API options", "error", err)
		return 1
	}

	slog.Info("Bootstrapping Jinny with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "provider", *flags.provider)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("Jinny failed to run", "error", err)
		return 1
	}
	slog.Info("Jinny exited successfully")
	return 0
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	NodeID        int
	OpenAIKey     string
	GeminiKey     string
	ModelProvider string
	Model         string
	ModelBaseURL  string
	Temperature   float64
	ModelTimeout  time.Duration
	ModelRetries  int
	ModelDebug    bool
	APIAddr       string
	RulesFallback bool
	CatalogPath   string
	LogLevel      string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	nodeID        *int
	openaiKey     *string
	geminiKey     *string
	provider      *string
	model         *string
	modelBaseURL  *string
	temperature   *float64
	modelTimeout  *time.Duration
	modelRetries  *int
	modelDebug    *bool
	apiAddr       *string
	rulesFallback *bool
	catalogPath   *string
	logLevel      *string
}

// initializeLogger installs a text logger at the named level, defaulting to debug.
func initializeLogger(level string) {
	lvl := slog.LevelDebug
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = slog.LevelDebug
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("JINNY_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		NodeID:        util.ParseIntEnv("JINNY_NODE_ID", 0),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		ModelProvider: os.Getenv("JINNY_MODEL_PROVIDER"),
		Model:         os.Getenv("JINNY_MODEL"),
		ModelBaseURL:  os.Getenv("JINNY_MODEL_BASE_URL"),
		Temperature:   util.ParseFloatEnv("JINNY_MODEL_TEMPERATURE", genai.DefaultTemperature),
		ModelTimeout:  util.ParseDurationEnv("JINNY_MODEL_TIMEOUT", genai.DefaultTimeout),
		ModelRetries:  util.ParseIntEnv("JINNY_MODEL_RETRIES", genai.DefaultAttempts),
		ModelDebug:    util.ParseBoolEnv("JINNY_MODEL_DEBUG", false),
		APIAddr:       os.Getenv("API_ADDR"),
		RulesFallback: util.ParseBoolEnv("JINNY_RULES_FALLBACK", false),
		CatalogPath:   os.Getenv("JINNY_CATALOG_PATH"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No JINNY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.ModelProvider == "" {
		config.ModelProvider = genai.ProviderOpenAI
	}

	slog.Debug("environment variables loaded",
		"JINNY_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"JINNY_MODEL_PROVIDER", config.ModelProvider,
		"JINNY_MODEL", config.Model,
		"JINNY_MODEL_TIMEOUT", config.ModelTimeout,
		"JINNY_MODEL_RETRIES", config.ModelRetries,
		"API_ADDR", config.APIAddr,
		"JINNY_RULES_FALLBACK", config.RulesFallback)

	return config
}

// defaultDSN is the SQLite file in the state directory, used when no DATABASE_URL is set.
func defaultDSN(stateDir string) string {
	return filepath.Join(stateDir, DefaultDBFileName)
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("Jinny", flag.ContinueOnError)
	flags := Flags{
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for Jinny data (overrides $JINNY_STATE_DIR)"),
		dbDSN:         fs.String("db-dsn", config.DatabaseURL, "database DSN: SQLite path, postgres:// or mysql:// (overrides $DATABASE_URL)"),
		nodeID:        fs.Int("node-id", config.NodeID, "sequence node id, unique per instance sharing a database (overrides $JINNY_NODE_ID)"),
		openaiKey:     fs.String("openai-api-key", config.OpenAIKey, "OpenAI or compatible endpoint API key (overrides $OPENAI_API_KEY)"),
		geminiKey:     fs.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		provider:      fs.String("model-provider", config.ModelProvider, "model provider: openai, gemini or compat (overrides $JINNY_MODEL_PROVIDER)"),
		model:         fs.String("model", config.Model, "model name (overrides $JINNY_MODEL)"),
		modelBaseURL:  fs.String("model-base-url", config.ModelBaseURL, "base URL for the compat provider (overrides $JINNY_MODEL_BASE_URL)"),
		temperature:   fs.Float64("model-temperature", config.Temperature, "sampling temperature (overrides $JINNY_MODEL_TEMPERATURE)"),
		modelTimeout:  fs.Duration("model-timeout", config.ModelTimeout, "per-call model timeout (overrides $JINNY_MODEL_TIMEOUT)"),
		modelRetries:  fs.Int("model-retries", config.ModelRetries, "model attempts per operation (overrides $JINNY_MODEL_RETRIES)"),
		modelDebug:    fs.Bool("model-debug", config.ModelDebug, "write model requests and replies under <state-dir>/debug (overrides $JINNY_MODEL_DEBUG)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		rulesFallback: fs.Bool("rules-fallback", config.RulesFallback, "serve catalog questions when no model is configured (overrides $JINNY_RULES_FALLBACK)"),
		catalogPath:   fs.String("catalog", config.CatalogPath, "question catalog YAML replacing the built-in one (overrides $JINNY_CATALOG_PATH)"),
		logLevel:      fs.String("log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $LOG_LEVEL)"),
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// With no explicit DSN the SQLite file follows the (possibly overridden) state directory
	if strings.TrimSpace(*flags.dbDSN) == "" {
		*flags.dbDSN = defaultDSN(*flags.stateDir)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"nodeID", *flags.nodeID,
		"openaiKeySet", *flags.openaiKey != "",
		"geminiKeySet", *flags.geminiKey != "",
		"provider", *flags.provider,
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"rulesFallback", *flags.rulesFallback)
	return flags, nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	switch store.DetectDSNType(*flags.dbDSN) {
	case store.DriverPostgres:
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	case store.DriverMySQL:
		slog.Debug("Detected MySQL DSN, configuring MySQL store", "dsn_type", "mysql", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithMySQLDSN(*flags.dbDSN))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	if *flags.nodeID != 0 {
		storeOpts = append(storeOpts, store.WithNode(int64(*flags.nodeID)))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options for the selected provider
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	key := *flags.openaiKey
	if *flags.provider == genai.ProviderGemini {
		key = *flags.geminiKey
	}
	if key != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(key))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	if *flags.modelBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.modelBaseURL))
	}
	genaiOpts = append(genaiOpts, genai.WithTemperature(*flags.temperature))
	if *flags.modelDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true), genai.WithStateDir(*flags.stateDir))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) ([]api.Option, error) {
	apiOpts := []api.Option{
		api.WithModelProvider(*flags.provider),
		api.WithRulesFallback(*flags.rulesFallback),
		api.WithRetryPolicy(genai.RetryPolicy{Attempts: *flags.modelRetries, Timeout: *flags.modelTimeout}),
	}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.catalogPath != "" {
		c, err := recommend.LoadCatalogFile(*flags.catalogPath)
		if err != nil {
			return nil, fmt.Errorf("invalid question catalog: %w", err)
		}
		apiOpts = append(apiOpts, api.WithCatalog(c))
	}
	return apiOpts, nil
}
