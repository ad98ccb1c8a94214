//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
	"github.com/lingora-ai/relay-server/internal/domain/quota"
	"github.com/lingora-ai/relay-server/internal/domain/relay"
	"github.com/lingora-ai/relay-server/internal/domain/token"
	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
	"github.com/lingora-ai/relay-server/internal/infrastructure/tracker"
	"github.com/lingora-ai/relay-server/internal/interfaces/httpserver"
	"github.com/lingora-ai/relay-server/internal/interfaces/httpserver/handlers"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideKV,
	ProvideUsageSink,
	tracker.New,

	// Domain providers
	ProvideTokenStore,
	ProvideQuotaTracker,
	ProvideLiveProvider,
	relay.New,

	// Interface providers
	handlers.NewAuthHandler,
	handlers.NewStatusHandler,
	handlers.NewWSHandler,
	handlers.NewProvider,
	httpserver.New,

	// Application
	NewApplication,
)

// ProvideKV provides the shared KV store.
func ProvideKV(cfg *config.Config, log zerolog.Logger) (store.KV, error) {
	if cfg.RedisURL != "" {
		return store.NewRedisStore(cfg.RedisURL, log)
	}
	return store.NewMemoryStore(log), nil
}

// ProvideUsageSink provides the usage-event sink.
func ProvideUsageSink(kv store.KV) tracker.Sink {
	return tracker.NewStoreSink(kv)
}

// ProvideTokenStore provides the session token store.
func ProvideTokenStore(kv store.KV, cfg *config.Config, log zerolog.Logger) *token.Store {
	return token.NewStore(kv, cfg.TokenTTL, log)
}

// ProvideQuotaTracker provides the daily quota tracker.
func ProvideQuotaTracker(kv store.KV, cfg *config.Config, log zerolog.Logger) *quota.Tracker {
	return quota.NewTracker(kv, cfg.DailyUserLimit, log)
}

// ProvideLiveProvider provides the configured conversation backend.
func ProvideLiveProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) (provider.LiveProvider, error) {
	return selectProvider(ctx, cfg, log)
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
