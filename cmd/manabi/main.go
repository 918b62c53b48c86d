package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/manabi-ai/manabi/internal/answer"
	"github.com/manabi-ai/manabi/internal/auth"
	"github.com/manabi-ai/manabi/internal/config"
	"github.com/manabi-ai/manabi/internal/linker"
	"github.com/manabi-ai/manabi/internal/profile"
	"github.com/manabi-ai/manabi/internal/ratelimit"
	"github.com/manabi-ai/manabi/internal/retrieval"
	"github.com/manabi-ai/manabi/internal/server"
	"github.com/manabi-ai/manabi/internal/telemetry"
	"github.com/manabi-ai/manabi/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("MANABI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("manabi starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	// Connect to the profile store.
	store, err := profile.NewPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Create token verifier.
	verifier, err := auth.NewVerifier(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Create retrieval backend client and fan-out aggregator.
	client, err := retrieval.NewClient(retrieval.Config{
		SearchBaseURL: cfg.SearchBaseURL,
		RAGBaseURL:    cfg.RAGBaseURL,
	})
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	aggregator := retrieval.NewAggregator(client, cfg.RetrievalTimeout, logger)

	// Answer generator (optional — disabled without an API key).
	var generator answer.Generator
	if cfg.GeminiAPIKey != "" {
		gen, err := answer.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("answer generator: %w", err)
		}
		generator = gen
		logger.Info("answer generation: enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("answer generation: disabled (no GEMINI_API_KEY)")
	}

	// Document link broker. The GCS signer is optional: without it only
	// http(s) and demo sources resolve.
	var signer linker.Signer
	if cfg.StorageBucket != "" || cfg.GCPCredentials != "" {
		gcs, err := linker.NewGCSSigner(ctx)
		if err != nil {
			return fmt.Errorf("linker: %w", err)
		}
		defer func() { _ = gcs.Close() }()
		signer = gcs
		logger.Info("signed links: enabled", "default_bucket", cfg.StorageBucket)
	} else {
		logger.Info("signed links: disabled (no storage configuration)")
	}
	broker := linker.NewBroker(signer, cfg.StorageBucket, cfg.SignedLinkTTL)

	// Rate limiter for the retrieval endpoints.
	var limiter ratelimit.Limiter
	if cfg.SearchRateLimit > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.SearchRateLimit, cfg.SearchRateBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.SearchRateLimit, "burst", cfg.SearchRateBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Profiles:            store,
		Verifier:            verifier,
		Client:              client,
		Aggregator:          aggregator,
		Generator:           generator,
		Broker:              broker,
		Limiter:             limiter,
		Metrics:             metrics,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		TeacherDefault:      cfg.TeacherDefaultScope,
		AnswerBudget:        cfg.AnswerBudget,
		SyncTimeout:         cfg.SyncTimeout,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("manabi shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	return nil
}
