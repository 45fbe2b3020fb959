package bootstrap

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"redteam/internal/adapters/ai"
	"redteam/internal/adapters/config"
	errnoop "redteam/internal/adapters/errors/noop"
	"redteam/internal/adapters/errors/sentry"
	"redteam/internal/adapters/kafka"
	redisclient "redteam/internal/adapters/redis"
	"redteam/internal/events"
	"redteam/internal/metrics"
	"redteam/internal/perspectives"
	"redteam/internal/services/analyzer"
	"redteam/internal/services/contextprovider"
	"redteam/internal/services/orchestrator"
	"redteam/internal/services/synthesis"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
)

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Debug("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// provideRedis connects when REDIS_HOST is set. A failed connection only
// disables the cache and the shared rate limiter.
func provideRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redisclient.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}

	log.Infof("Connecting to Redis at %s...", cfg.Redis.Addr())
	client, err := redisclient.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warnw("Redis unavailable, continuing without cache", "error", err)
		return nil
	}
	log.Info("✓ Redis connected")

	metrics.RegisterCacheCollector(metrics.NewCacheCollector(log, client.Client(), contextprovider.KeyPrefix))
	return client
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled() {
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func providePublisher(cfg *config.Config, producer *kafka.Producer) events.Publisher {
	if producer == nil {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(producer, cfg.Kafka.TopicPrefix)
}

func provideGateway(ctx context.Context, cfg *config.Config, rdb *redisclient.Client, log *logger.Logger) (*ai.Gateway, error) {
	var shared *goredis.Client
	if rdb != nil {
		shared = rdb.Client()
	}
	gateway, err := ai.BuildGateway(ctx, cfg, shared)
	if err != nil {
		return nil, err
	}
	log.Infow("✓ Model gateway ready",
		"provider", gateway.Provider(),
		"model", gateway.Model(),
		"shared_rate_limit", shared != nil,
	)
	return gateway, nil
}

// provideContextProvider returns the external context source. No search
// backend ships with the engine; with Redis the (empty) source is cached so a
// later backend only has to replace the inner provider.
func provideContextProvider(cfg *config.Config, rdb *redisclient.Client, inner contextprovider.Provider) contextprovider.Provider {
	if inner == nil {
		inner = contextprovider.NoOp{}
	}
	if rdb != nil {
		inner = contextprovider.NewCachedProvider(inner, rdb, cfg.Analysis.ContextCacheTTL)
	}
	return contextprovider.NewGuarded(inner, cfg.Analysis.ContextTimeout)
}

func provideAnalyzer(cfg *config.Config, caller ai.Caller, catalog *perspectives.Catalog, provider contextprovider.Provider) *analyzer.Analyzer {
	return analyzer.New(caller, catalog, provider, analyzer.Config{
		MaxTokens: cfg.Analysis.PerspectiveTokens,
		Timeout:   cfg.Analysis.PerspectiveTimeout,
		MinLength: cfg.Analysis.MinAnalysisLength,
	})
}

func provideOrchestrator(cfg *config.Config, a *analyzer.Analyzer, catalog *perspectives.Catalog, publisher events.Publisher, tracker errors.Tracker) *orchestrator.Orchestrator {
	return orchestrator.New(a, catalog, publisher, tracker, orchestrator.Config{
		MaxConcurrency:    cfg.Analysis.MaxConcurrency,
		RateLimitDelay:    cfg.Analysis.RateLimitDelay,
		MaxStrategyLength: cfg.Analysis.MaxStrategyLength,
	})
}

func provideSynthesizer(cfg *config.Config, caller ai.Caller, catalog *perspectives.Catalog, publisher events.Publisher) *synthesis.Synthesizer {
	return synthesis.New(caller, catalog, publisher, synthesis.Config{
		MaxTokens:   cfg.Analysis.SynthesisTokens,
		Timeout:     cfg.Analysis.RequestTimeout,
		Attempts:    cfg.Analysis.SynthesisAttempts,
		FollowUpMax: cfg.Analysis.FollowUpMaxQuestion,
	})
}
