// Command dta runs the digital therapy assistant burnout assessment service.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/api"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/genai"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/media"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/orchestrator"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/store"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/util"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	mediaOpts := buildMediaOptions(flags)
	orchOpts := buildOrchestratorOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping burnout assessment service")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "media", len(mediaOpts), "orchestrator", len(orchOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, genaiOpts, mediaOpts, orchOpts, apiOpts); err != nil {
		slog.Error("Service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Service exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	OpenAIKey   string
	APIAddr     string
	MediaBucket string
	AWSRegion   string
	SessionTTL  string
	FHIRExport  bool
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	mediaBucket *string
	awsRegion   *string
	sessionTTL  *string
	fhirExport  *bool
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		MediaBucket: os.Getenv("DTA_MEDIA_BUCKET"),
		AWSRegion:   os.Getenv("AWS_REGION"),
		SessionTTL:  os.Getenv("DTA_SESSION_TTL"),
		FHIRExport:  util.ParseBoolEnv("DTA_FHIR_EXPORT", false),
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"DTA_MEDIA_BUCKET", config.MediaBucket,
		"AWS_REGION", config.AWSRegion,
		"DTA_SESSION_TTL", config.SessionTTL,
		"DTA_FHIR_EXPORT", config.FHIRExport)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "session store DSN: Postgres URL or SQLite file path; empty for in-memory (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		mediaBucket: flag.String("media-bucket", config.MediaBucket, "S3 bucket for media and FHIR documents (overrides $DTA_MEDIA_BUCKET)"),
		awsRegion:   flag.String("aws-region", config.AWSRegion, "AWS region for media storage (overrides $AWS_REGION)"),
		sessionTTL:  flag.String("session-ttl", config.SessionTTL, "session eviction TTL, e.g. 2h (overrides $DTA_SESSION_TTL)"),
		fhirExport:  flag.Bool("fhir-export", config.FHIRExport, "export completed assessments as FHIR documents (overrides $DTA_FHIR_EXPORT)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"mediaBucket", *flags.mediaBucket,
		"awsRegion", *flags.awsRegion,
		"sessionTTL", *flags.sessionTTL,
		"fhirExport", *flags.fhirExport)

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildMediaOptions constructs media storage configuration options
func buildMediaOptions(flags Flags) []media.Option {
	var mediaOpts []media.Option
	if *flags.mediaBucket != "" {
		mediaOpts = append(mediaOpts, media.WithBucket(*flags.mediaBucket))
	}
	if *flags.awsRegion != "" {
		mediaOpts = append(mediaOpts, media.WithRegion(*flags.awsRegion))
	}
	return mediaOpts
}

// buildOrchestratorOptions constructs orchestrator configuration options
func buildOrchestratorOptions(flags Flags) []orchestrator.Option {
	var orchOpts []orchestrator.Option
	if *flags.sessionTTL != "" {
		ttl, err := time.ParseDuration(*flags.sessionTTL)
		if err != nil {
			slog.Warn("Invalid session TTL, using default", "value", *flags.sessionTTL, "error", err)
		} else {
			orchOpts = append(orchOpts, orchestrator.WithSessionTTL(ttl))
		}
	}
	return orchOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.fhirExport {
		apiOpts = append(apiOpts, api.WithFHIRExport(true))
	}
	return apiOpts
}
