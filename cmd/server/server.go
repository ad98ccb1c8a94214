package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
	"github.com/lingora-ai/relay-server/internal/domain/quota"
	"github.com/lingora-ai/relay-server/internal/domain/relay"
	"github.com/lingora-ai/relay-server/internal/domain/token"
	"github.com/lingora-ai/relay-server/internal/infrastructure/gemini"
	"github.com/lingora-ai/relay-server/internal/infrastructure/logger"
	"github.com/lingora-ai/relay-server/internal/infrastructure/observability"
	"github.com/lingora-ai/relay-server/internal/infrastructure/qwen"
	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
	"github.com/lingora-ai/relay-server/internal/infrastructure/tracker"
	"github.com/lingora-ai/relay-server/internal/interfaces/httpserver"
	"github.com/lingora-ai/relay-server/internal/interfaces/httpserver/handlers"
)

// Application holds the main application components.
type Application struct {
	httpServer *httpserver.HTTPServer
	usage      *tracker.Tracker
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(httpServer *httpserver.HTTPServer, usage *tracker.Tracker, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		usage:      usage,
		log:        log,
	}
}

// Start runs the application.
func (a *Application) Start(ctx context.Context) error {
	a.usage.Start(ctx)

	// Run HTTP server (blocks until context cancelled)
	err := a.httpServer.Run(ctx)

	a.usage.Stop()

	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Shared KV store: Redis when configured, otherwise process-local.
	var kv store.KV
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()
		kv = redisStore
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-memory store (single instance only)")
		kv = store.NewMemoryStore(log)
	}

	tokens := token.NewStore(kv, cfg.TokenTTL, log)
	quotaTracker := quota.NewTracker(kv, cfg.DailyUserLimit, log)
	usage := tracker.New(tracker.NewStoreSink(kv), log)

	prov, err := selectProvider(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize conversation backend")
	}

	sessionRelay := relay.New(tokens, quotaTracker, prov, usage, cfg, log)

	handlerProv := handlers.NewProvider(
		handlers.NewAuthHandler(tokens, quotaTracker, usage, cfg, log),
		handlers.NewStatusHandler(cfg, prov),
		handlers.NewWSHandler(sessionRelay, cfg, log),
	)
	httpServer := httpserver.New(cfg, log, handlerProv)

	app := NewApplication(httpServer, usage, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("provider", prov.Name()).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func selectProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) (provider.LiveProvider, error) {
	switch cfg.Provider {
	case config.ProviderQwen:
		return qwen.New(cfg, log), nil
	default:
		return gemini.New(ctx, cfg, log)
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
