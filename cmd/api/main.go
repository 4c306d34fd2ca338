package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/generation"
	"github.com/gupranay/civitai/internal/http/handlers"
	httpapi "github.com/gupranay/civitai/internal/http/httpapi"
	"github.com/gupranay/civitai/internal/infra"
	"github.com/gupranay/civitai/internal/moderation"
	"github.com/gupranay/civitai/internal/orchestrator"
)

const pruneInterval = time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}
	counter, closeCounter, err := newCounter(ctx, cfg, logger, checks)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.AbuseStore).Msg("failed to configure abuse store")
	}
	defer closeCounter()

	policy := moderation.DefaultPolicy()
	if cfg.PromptPolicyPath != "" {
		if policy, err = moderation.LoadPolicy(cfg.PromptPolicyPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to load prompt policy")
		}
	}
	auditor, err := moderation.NewAuditor(policy)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile prompt policy")
	}

	escalation, err := newEscalation(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid abuse thresholds")
	}

	moderator := moderation.NewClient(moderation.ClientOptions{
		APIKey:     cfg.ModerationAPIKey,
		BaseURL:    cfg.ModerationBaseURL,
		Model:      cfg.ModerationModel,
		Timeout:    cfg.ModerationTimeout,
		Logger:     &logger,
		FailClosed: !cfg.ModerationFailOpen,
	})
	if !cfg.ModerationFailOpen {
		logger.Warn().Msg("moderation fails closed: classifier outages will reject prompts")
	}

	submitter := orchestrator.NewClient(orchestrator.Options{
		BaseURL: cfg.OrchestratorBaseURL,
		Timeout: cfg.OrchestratorTimeout,
		Logger:  &logger,
	})

	svc, err := generation.NewService(generation.Options{
		Auditor:         auditor,
		Moderator:       moderator,
		Counter:         counter,
		Escalation:      escalation,
		Normalizer:      generation.NewNormalizer(nil, cfg.MaxRandomSeed),
		Submitter:       submitter,
		SignalsEndpoint: cfg.SignalsEndpoint,
		Limits: domain.Limits{
			MaxPromptLength:         cfg.MaxPromptLength,
			MaxNegativePromptLength: cfg.MaxNegativePromptLength,
		},
		ETAHorizon: cfg.WhatIfETAHorizon,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation service")
	}

	app := handlers.NewApp(svc, cfg.OrchestratorToken, &logger)
	app.Checks = checks
	router := httpapi.NewRouter(cfg, app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("abuse_store", cfg.AbuseStore).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newEscalation builds the rejection tier table from the configured thresholds.
func newEscalation(cfg *infra.Config) (*moderation.Escalation, error) {
	thresholds := moderation.Thresholds{
		Low:  cfg.AbuseThresholdLow,
		Mid:  cfg.AbuseThresholdMid,
		High: cfg.AbuseThresholdHigh,
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return moderation.NewEscalation(thresholds), nil
}

// newCounter opens the configured abuse store and registers its health check.
// The returned func releases the store's connections.
func newCounter(ctx context.Context, cfg *infra.Config, logger infra.Logger, checks map[string]handlers.HealthCheck) (moderation.Counter, func(), error) {
	switch cfg.AbuseStore {
	case infra.AbuseStoreRedis:
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return moderation.NewRedisCounter(client, cfg.AbuseWindow), func() { _ = client.Close() }, nil
	case infra.AbuseStorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		checks["postgres"] = pool.Ping
		counter := moderation.NewSQLCounter(infra.NewSQLRunner(pool, logger), cfg.AbuseWindow)
		if err := counter.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go prune(ctx, counter, logger)
		return counter, pool.Close, nil
	default:
		logger.Warn().Msg("using in-memory abuse store; counts are not shared between instances")
		return moderation.NewMemoryCounter(cfg.AbuseWindow), func() {}, nil
	}
}

func prune(ctx context.Context, counter *moderation.SQLCounter, logger infra.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := counter.Prune(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("prune prohibited requests failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("pruned prohibited requests")
			}
		}
	}
}
