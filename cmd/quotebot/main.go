package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brightvolt/quotebot/internal/api"
	"github.com/brightvolt/quotebot/internal/convert"
	"github.com/brightvolt/quotebot/internal/flow"
	"github.com/brightvolt/quotebot/internal/flowdef"
	"github.com/brightvolt/quotebot/internal/merge"
	"github.com/brightvolt/quotebot/internal/messaging"
	"github.com/brightvolt/quotebot/internal/storage"
	"github.com/brightvolt/quotebot/internal/store"
	"github.com/brightvolt/quotebot/internal/telegram"
	"github.com/brightvolt/quotebot/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for QuoteBot state data
	DefaultStateDir = "/var/lib/quotebot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "quotebot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	objects, err := buildStorage(flags)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	def := flowdef.Default()
	if err := def.Validate(); err != nil {
		slog.Error("Flow definition invalid", "error", err)
		os.Exit(1)
	}
	engine := flow.NewEngine(st, def)
	merger := merge.New(objects, objects, buildMergeOptions(flags)...)

	if *flags.telegramToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	bot, err := telegram.NewBot(*flags.telegramToken, engine, merger)
	if err != nil {
		slog.Error("Failed to create Telegram bot", "error", err)
		os.Exit(1)
	}

	var server *api.Server
	if *flags.twilioSID != "" {
		sender, err := messaging.NewTwilioSender(
			messaging.WithAccountSID(*flags.twilioSID),
			messaging.WithAuthToken(*flags.twilioToken),
			messaging.WithFromNumber(*flags.twilioFrom),
		)
		if err != nil {
			slog.Error("Failed to create Twilio sender", "error", err)
			os.Exit(1)
		}
		responder := messaging.NewResponder(engine, merger, sender)
		var apiOpts []api.Option
		if *flags.apiAddr != "" {
			apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
		}
		server = api.NewServer(responder, apiOpts...)
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("API server failed", "error", err)
			}
		}()
	} else {
		slog.Info("Twilio not configured, SMS channel disabled")
	}

	go bot.Start()
	slog.Info("QuoteBot running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down")
	bot.Stop()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("API server shutdown failed", "error", err)
		}
	}
	slog.Info("QuoteBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	TelegramToken  string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	TemplateBucket string
	OutputBucket   string
	TemplateDir    string
	OutputDir      string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	APIAddr        string
	GotenbergURL   string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN          *string
	stateDir       *string
	telegramToken  *string
	s3Endpoint     *string
	s3AccessKey    *string
	s3SecretKey    *string
	s3UseSSL       *bool
	templateBucket *string
	outputBucket   *string
	templateDir    *string
	outputDir      *string
	twilioSID      *string
	twilioToken    *string
	twilioFrom     *string
	apiAddr        *string
	gotenbergURL   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("QUOTEBOT_STATE_DIR"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       util.ParseBoolEnv("S3_USE_SSL", true),
		TemplateBucket: os.Getenv("TEMPLATE_BUCKET"),
		OutputBucket:   os.Getenv("OUTPUT_BUCKET"),
		TemplateDir:    os.Getenv("TEMPLATE_DIR"),
		OutputDir:      os.Getenv("OUTPUT_DIR"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
		APIAddr:        os.Getenv("API_ADDR"),
		GotenbergURL:   os.Getenv("GOTENBERG_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No QUOTEBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.TemplateDir == "" {
		config.TemplateDir = filepath.Join(config.StateDir, "templates")
	}
	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(config.StateDir, "output")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"QUOTEBOT_STATE_DIR", config.StateDir,
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"S3_ENDPOINT", config.S3Endpoint,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"API_ADDR", config.APIAddr,
		"GOTENBERG_URL", config.GotenbergURL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "session store DSN: sqlite path, postgres:// or redis:// (overrides $DATABASE_URL)"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for QuoteBot data (overrides $QUOTEBOT_STATE_DIR)"),
		telegramToken:  flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		s3Endpoint:     flag.String("s3-endpoint", config.S3Endpoint, "S3-compatible endpoint; empty uses filesystem storage (overrides $S3_ENDPOINT)"),
		s3AccessKey:    flag.String("s3-access-key", config.S3AccessKey, "S3 access key (overrides $S3_ACCESS_KEY)"),
		s3SecretKey:    flag.String("s3-secret-key", config.S3SecretKey, "S3 secret key (overrides $S3_SECRET_KEY)"),
		s3UseSSL:       flag.Bool("s3-use-ssl", config.S3UseSSL, "use TLS for the S3 endpoint (overrides $S3_USE_SSL)"),
		templateBucket: flag.String("template-bucket", config.TemplateBucket, "bucket holding quotation templates (overrides $TEMPLATE_BUCKET)"),
		outputBucket:   flag.String("output-bucket", config.OutputBucket, "bucket receiving generated quotations (overrides $OUTPUT_BUCKET)"),
		templateDir:    flag.String("template-dir", config.TemplateDir, "template directory for filesystem storage (overrides $TEMPLATE_DIR)"),
		outputDir:      flag.String("output-dir", config.OutputDir, "output directory for filesystem storage (overrides $OUTPUT_DIR)"),
		twilioSID:      flag.String("twilio-sid", config.TwilioSID, "Twilio account SID; empty disables SMS (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:    flag.String("twilio-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:     flag.String("twilio-from", config.TwilioFrom, "Twilio sending number (overrides $TWILIO_FROM_NUMBER)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR)"),
		gotenbergURL:   flag.String("gotenberg-url", config.GotenbergURL, "Gotenberg base URL; empty disables PDF conversion (overrides $GOTENBERG_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"telegramToken_set", *flags.telegramToken != "",
		"s3Endpoint", *flags.s3Endpoint,
		"twilioSID_set", *flags.twilioSID != "",
		"apiAddr", *flags.apiAddr,
		"gotenbergURL", *flags.gotenbergURL)

	return flags
}

// buildStore selects a session store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	case "redis":
		slog.Debug("Detected Redis DSN, configuring Redis store")
		return store.NewRedisStore(store.WithDSN(dsn))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}

// storageBackend is the combined template source and artifact store interface
// that both object storage backends satisfy.
type storageBackend interface {
	storage.TemplateSource
	storage.ArtifactStore
}

// buildStorage selects S3 or filesystem object storage.
func buildStorage(flags Flags) (storageBackend, error) {
	if *flags.s3Endpoint != "" {
		return storage.NewS3Storage(
			storage.WithEndpoint(*flags.s3Endpoint),
			storage.WithCredentials(*flags.s3AccessKey, *flags.s3SecretKey),
			storage.WithSSL(*flags.s3UseSSL),
			storage.WithTemplateBucket(*flags.templateBucket),
			storage.WithOutputBucket(*flags.outputBucket),
		)
	}
	slog.Debug("No S3 endpoint configured, using filesystem storage",
		"template_dir", *flags.templateDir, "output_dir", *flags.outputDir)
	return storage.NewFilesystemStorage(*flags.templateDir, *flags.outputDir)
}

// buildMergeOptions constructs merger configuration options.
func buildMergeOptions(flags Flags) []merge.Option {
	var opts []merge.Option
	if *flags.gotenbergURL != "" {
		opts = append(opts, merge.WithConverter(convert.NewGotenberg(*flags.gotenbergURL)))
	}
	return opts
}
