package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/internal/events"
	"redteam/internal/metrics"
	"redteam/internal/perspectives"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
)

// ProgressFunc receives the fraction of perspectives dispatched so far and a
// human-readable message. It is called from the dispatching goroutine only.
type ProgressFunc func(fraction float64, message string)

// CompletionMessage is reported with fraction 1.0 after every perspective resolved.
const CompletionMessage = "Analysis complete!"

// PerspectiveAnalyzer runs one perspective. *analyzer.Analyzer implements it.
type PerspectiveAnalyzer interface {
	Analyze(ctx context.Context, strategy, perspectiveID string, mentalModels []string) (analysis.Result, error)
}

// Config holds the fan-out limits.
type Config struct {
	MaxConcurrency    int
	RateLimitDelay    time.Duration
	MaxStrategyLength int
}

// Orchestrator fans a strategy out to every requested perspective.
type Orchestrator struct {
	analyzer  PerspectiveAnalyzer
	catalog   *perspectives.Catalog
	publisher events.Publisher
	tracker   errors.Tracker
	cfg       Config
	now       func() time.Time
	log       *logger.Logger
}

// New creates an orchestrator. publisher and tracker may be nil.
func New(a PerspectiveAnalyzer, catalog *perspectives.Catalog, publisher events.Publisher, tracker errors.Tracker, cfg Config) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.RateLimitDelay < 0 {
		cfg.RateLimitDelay = 0
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		analyzer:  a,
		catalog:   catalog,
		publisher: publisher,
		tracker:   tracker,
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Get().Component("orchestrator"),
	}
}

// AnalyzeStrategy returns one result per requested perspective. Only an
// invalid request or an unknown perspective id is returned as an error;
// provider failures become results with confidence 0.
func (o *Orchestrator) AnalyzeStrategy(ctx context.Context, req analysis.Request, progress ProgressFunc) (analysis.Results, error) {
	ids, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(float64, string) {}
	}

	runID, ok := analysis.RunIDFromContext(ctx)
	if !ok || runID == "" {
		runID = uuid.NewString()
		ctx = analysis.WithRunID(ctx, runID)
	}
	log := o.log.With("run_id", runID)

	start := time.Now()
	total := len(ids)
	log.Infow("Starting strategy analysis",
		"perspectives", ids,
		"mental_models", req.MentalModels,
		"max_concurrency", o.cfg.MaxConcurrency,
	)

	// Each task writes only its own slot
	slots := make([]analysis.Result, total)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.cfg.MaxConcurrency)

	dispatched := 0
dispatch:
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		progress(float64(i)/float64(total), fmt.Sprintf("Analyzing from %s perspective...", o.catalog.Label(id)))
		o.breadcrumb(ctx, "perspective dispatched", id)
		dispatched++

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			slots[i] = o.runOne(ctx, log, req, id)

			// Hold the slot for the rate-limit delay before the next call may start
			o.pause(ctx)
		}(i, id)
	}

	wg.Wait()

	for i := dispatched; i < total; i++ {
		slots[i] = o.failedResult(ids[i], ctx.Err())
		metrics.RecordPerspective(ids[i], "failed")
	}

	results := make(analysis.Results, total)
	for _, r := range slots {
		results[r.Perspective] = r
	}

	progress(1.0, CompletionMessage)

	duration := time.Since(start)
	metrics.RecordAnalysis(duration)
	stats := analysis.Summarize(results)
	log.Infow("Strategy analysis complete",
		"perspectives", total,
		"failed", stats.Failed,
		"average_confidence", stats.AverageConfidence,
		"duration", duration,
	)

	o.publisher.PublishAnalysisCompleted(ctx, events.NewAnalysisCompleted(runID, results, duration))
	return results, nil
}

func (o *Orchestrator) runOne(ctx context.Context, log *logger.Logger, req analysis.Request, id string) (res analysis.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrapf(errors.ErrInternal, "perspective %s panicked: %v", id, r)
			log.ErrorWithContext(ctx, err, map[string]string{"perspective": id})
			res = o.failedResult(id, err)
			metrics.RecordPerspective(id, "failed")
		}
	}()

	res, err := o.analyzer.Analyze(ctx, req.Strategy, id, req.MentalModels)
	if err != nil {
		log.Warnw("Perspective analysis failed",
			"perspective", id,
			"kind", ai.KindOf(err),
			"error", err,
		)
		o.capture(ctx, err, id)
		metrics.RecordPerspective(id, "failed")
		return o.failedResult(id, err)
	}

	res.Perspective = id
	res.ConfidenceScore = analysis.ClampConfidence(res.ConfidenceScore, 0.5)
	return res
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.cfg.RateLimitDelay <= 0 {
		return
	}
	t := time.NewTimer(o.cfg.RateLimitDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// validate checks the request and returns the perspective ids deduplicated in request order.
func (o *Orchestrator) validate(req analysis.Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.cfg.MaxStrategyLength > 0 && len([]rune(req.Strategy)) > o.cfg.MaxStrategyLength {
		return nil, errors.NewValidationError("strategy",
			fmt.Sprintf("must be at most %d characters", o.cfg.MaxStrategyLength), len([]rune(req.Strategy)))
	}

	seen := make(map[string]struct{}, len(req.Perspectives))
	ids := make([]string, 0, len(req.Perspectives))
	for _, raw := range req.Perspectives {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		if !o.catalog.Has(id) {
			return nil, errors.Wrapf(errors.ErrUnknownPerspective, "%q", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (o *Orchestrator) failedResult(id string, err error) analysis.Result {
	return analysis.Result{
		Perspective:     id,
		Analysis:        FailureMessage(err),
		ConfidenceScore: 0,
		KeyInsights:     []string{},
		Recommendations: []string{},
		Timestamp:       o.now().UTC(),
		Failed:          true,
	}
}

func (o *Orchestrator) capture(ctx context.Context, err error, perspective string) {
	if o.tracker == nil {
		return
	}
	// Transient kinds are expected under load; only report the rest
	if ai.KindOf(err).Retryable() {
		return
	}
	_ = o.tracker.CaptureError(ctx, err, map[string]string{
		"component":   "orchestrator",
		"perspective": perspective,
		"kind":        string(ai.KindOf(err)),
	})
}

func (o *Orchestrator) breadcrumb(ctx context.Context, message, perspective string) {
	if o.tracker == nil {
		return
	}
	o.tracker.AddBreadcrumb(ctx, message, "analysis", errors.LevelInfo, map[string]interface{}{
		"perspective": perspective,
	})
}
