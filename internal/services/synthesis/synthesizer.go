package synthesis

import (
	"context"
	"time"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/internal/events"
	"redteam/internal/metrics"
	"redteam/internal/perspectives"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
	"redteam/pkg/templates"
)

// SystemPrompt frames the synthesis call.
const SystemPrompt = "You are a strategic synthesis expert who combines multiple analytical perspectives into actionable insights. " +
	"Identify patterns that recur across perspectives, rank insights by impact and evidence, keep recommendations specific " +
	"and implementable, and check the result for internal contradictions. Respond with ONLY the requested JSON object."

// Config tunes the synthesis call.
type Config struct {
	MaxTokens   int
	Timeout     time.Duration
	Attempts    int
	Temperature *float64

	// FollowUpMax caps the number of follow-up questions returned
	FollowUpMax int
}

// Synthesizer reduces per-perspective results into one report.
type Synthesizer struct {
	caller    ai.Caller
	catalog   *perspectives.Catalog
	publisher events.Publisher
	templates *templates.Registry
	cfg       Config
	log       *logger.Logger
}

// New creates a synthesizer. publisher may be nil.
func New(caller ai.Caller, catalog *perspectives.Catalog, publisher events.Publisher, cfg Config) *Synthesizer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 6000
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.FollowUpMax <= 0 {
		cfg.FollowUpMax = 7
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Synthesizer{
		caller:    caller,
		catalog:   catalog,
		publisher: publisher,
		templates: templates.Get(),
		cfg:       cfg,
		log:       logger.Get().Component("synthesizer"),
	}
}

type section struct {
	Label           string
	Confidence      float64
	Analysis        string
	Insights        []string
	Recommendations []string
}

type promptData struct {
	Strategy      string
	Sections      []section
	PreviousError string
}

// Synthesize always returns a valid report. When the model cannot produce
// one, the report is built from the results and carries a fallback marker.
// An empty results map never reaches the model: callers get a fallback
// report marked "no analysis results" instead of an error.
func (s *Synthesizer) Synthesize(ctx context.Context, strategy string, results analysis.Results) *analysis.Report {
	runID, _ := analysis.RunIDFromContext(ctx)
	log := s.log.With("run_id", runID)

	report, attempts, err := s.synthesize(ctx, log, strategy, results)
	if err != nil {
		log.Warnw("Falling back to deterministic synthesis", "attempts", attempts, "error", err)
		report = Fallback(results, err)
	}

	metrics.RecordSynthesis(report.IsFallback(), attempts)
	s.publisher.PublishSynthesisCompleted(ctx, events.NewSynthesisCompleted(runID, report, attempts))
	return report
}

func (s *Synthesizer) synthesize(ctx context.Context, log *logger.Logger, strategy string, results analysis.Results) (*analysis.Report, int, error) {
	if len(results) == 0 {
		return nil, 0, errors.ErrEmptyResults
	}

	data := promptData{Strategy: strategy, Sections: s.sections(results)}

	var lastErr error
	attempts := 0
	for attempts < s.cfg.Attempts {
		attempts++

		prompt, err := s.templates.Render(templates.Synthesis, data)
		if err != nil {
			return nil, attempts, errors.Wrap(errors.ErrInternal, err.Error())
		}

		raw, err := s.caller.Call(ctx, ai.CallRequest{
			Prompt:      prompt,
			System:      SystemPrompt,
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
			Timeout:     s.cfg.Timeout,
			JSON:        true,
		})
		if err != nil {
			// The gateway already retried transient failures
			return nil, attempts, errors.Wrap(err, "synthesis call failed")
		}

		report, err := ParseReport(raw)
		if err == nil {
			log.Infow("Synthesis complete",
				"attempts", attempts,
				"confidence", report.ConfidenceAssessment,
				"consensus", report.ConsensusLevel,
			)
			return report, attempts, nil
		}

		lastErr = err
		log.Warnw("Synthesis response rejected", "attempt", attempts, "max_attempts", s.cfg.Attempts, "error", err)
		data.PreviousError = err.Error()
	}

	return nil, attempts, errors.Wrapf(lastErr, "no valid synthesis after %d attempts", attempts)
}

// sections lists results in catalog order; ids the catalog does not know come last, sorted.
func (s *Synthesizer) sections(results analysis.Results) []section {
	out := make([]section, 0, len(results))
	for _, id := range orderedIDs(s.catalog, results) {
		r := results[id]
		out = append(out, section{
			Label:           s.catalog.Label(id),
			Confidence:      r.ConfidenceScore,
			Analysis:        r.Analysis,
			Insights:        r.KeyInsights,
			Recommendations: r.Recommendations,
		})
	}
	return out
}

func orderedIDs(catalog *perspectives.Catalog, results analysis.Results) []string {
	return catalog.Order(results.Keys())
}
