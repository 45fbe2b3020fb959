package bootstrap

import (
	"context"

	"redteam/internal/adapters/ai"
	"redteam/internal/adapters/config"
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

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	// Infrastructure, nil when not configured
	Redis *redisclient.Client
	Kafka *kafka.Producer

	ErrorTracker errors.Tracker
	Publisher    events.Publisher

	// Caller is the model gateway, or the caller injected with WithCaller
	Caller  ai.Caller
	Gateway *ai.Gateway

	Catalog      *perspectives.Catalog
	Context      contextprovider.Provider
	Analyzer     *analyzer.Analyzer
	Orchestrator *orchestrator.Orchestrator
	Synthesizer  *synthesis.Synthesizer

	lifecycle *Lifecycle
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	caller  ai.Caller
	context contextprovider.Provider
}

// WithCaller replaces the configured gateway. No provider credentials are needed.
func WithCaller(c ai.Caller) Option {
	return func(o *options) { o.caller = c }
}

// WithContextProvider sets the external context source used by every perspective.
func WithContextProvider(p contextprovider.Provider) Option {
	return func(o *options) { o.context = p }
}

// New builds the container. Optional infrastructure (Redis, Kafka, Sentry)
// degrades to no-op implementations; a bad provider setup or catalog fails.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.Wrap(errors.ErrConfiguration, "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{
		Config:    cfg,
		Log:       logger.Get().Component("bootstrap"),
		lifecycle: NewLifecycle(),
	}

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()

	catalog, err := perspectives.Load(cfg.Analysis.CatalogPath)
	if err != nil {
		return nil, err
	}
	c.Catalog = catalog

	c.Redis = provideRedis(ctx, cfg, c.Log)

	if o.caller != nil {
		c.Caller = o.caller
	} else {
		c.Gateway, err = provideGateway(ctx, cfg, c.Redis, c.Log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Caller = c.Gateway
	}

	c.Kafka = provideKafkaProducer(cfg, c.Log)
	c.Publisher = providePublisher(cfg, c.Kafka)

	c.Context = provideContextProvider(cfg, c.Redis, o.context)
	c.Analyzer = provideAnalyzer(cfg, c.Caller, c.Catalog, c.Context)
	c.Orchestrator = provideOrchestrator(cfg, c.Analyzer, c.Catalog, c.Publisher, c.ErrorTracker)
	c.Synthesizer = provideSynthesizer(cfg, c.Caller, c.Catalog, c.Publisher)

	c.Log.Infow("Container ready",
		"perspectives", len(c.Catalog.IDs()),
		"redis", c.Redis != nil,
		"kafka", c.Kafka != nil,
	)
	return c, nil
}

// Close releases infrastructure. Safe to call more than once.
func (c *Container) Close() {
	c.lifecycle.Shutdown(c)
	c.Redis = nil
	c.Kafka = nil
}
