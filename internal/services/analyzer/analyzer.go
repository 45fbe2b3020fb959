package analyzer

import (
	"context"
	"strings"
	"time"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/internal/metrics"
	"redteam/internal/perspectives"
	"redteam/internal/services/coercer"
	"redteam/internal/services/contextprovider"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
	"redteam/pkg/templates"
)

// jsonOnly is appended to every perspective's system role.
const jsonOnly = " IMPORTANT: Respond with ONLY a valid JSON object. No code fences, no text before or after the JSON."

// Config tunes a single perspective call.
type Config struct {
	MaxTokens   int
	Timeout     time.Duration
	Temperature *float64
	MinLength   int
}

// Analyzer runs one perspective against a strategy. Safe for concurrent use.
type Analyzer struct {
	caller    ai.Caller
	catalog   *perspectives.Catalog
	context   contextprovider.Provider
	coercer   *coercer.Coercer
	templates *templates.Registry
	cfg       Config
	now       func() time.Time
	log       *logger.Logger
}

// New creates an analyzer. A nil context provider disables enhancement;
// any provider is wrapped so its failures never reach the analysis.
func New(caller ai.Caller, catalog *perspectives.Catalog, provider contextprovider.Provider, cfg Config) *Analyzer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if _, ok := provider.(*contextprovider.Guarded); !ok {
		provider = contextprovider.NewGuarded(provider, 15*time.Second)
	}
	return &Analyzer{
		caller:    caller,
		catalog:   catalog,
		context:   provider,
		coercer:   coercer.New(cfg.MinLength),
		templates: templates.Get(),
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Get().Component("perspective_analyzer"),
	}
}

type promptData struct {
	Strategy     string
	Perspective  perspectives.Perspective
	MentalModels []perspectives.MentalModel
	Context      string
}

// Analyze returns the perspective's result. It fails only for an unknown
// perspective or a gateway error; malformed output degrades to a raw-text result.
func (a *Analyzer) Analyze(ctx context.Context, strategy, perspectiveID string, mentalModels []string) (analysis.Result, error) {
	p, err := a.catalog.Perspective(perspectiveID)
	if err != nil {
		return analysis.Result{}, err
	}

	prompt, err := a.BuildPrompt(ctx, strategy, p, mentalModels)
	if err != nil {
		return analysis.Result{}, err
	}

	raw, err := a.caller.Call(ctx, ai.CallRequest{
		Prompt:      prompt,
		System:      p.SystemRole + jsonOnly,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Timeout:     a.cfg.Timeout,
		JSON:        true,
	})
	if err != nil {
		return analysis.Result{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return analysis.Result{}, errors.Wrapf(errors.ErrExternal, "empty response for %s", perspectiveID)
	}

	result := analysis.Result{
		Perspective: perspectiveID,
		Timestamp:   a.now().UTC(),
	}

	rec, stage := a.coercer.CoerceStage(raw)
	if rec == nil {
		a.log.Warnw("Could not coerce structured output, keeping raw text",
			"perspective", perspectiveID,
			"response_length", len(raw),
		)
		metrics.RecordPerspective(perspectiveID, "raw")

		result.Analysis = strings.TrimSpace(raw)
		result.ConfidenceScore = coercer.DefaultConfidence
		result.KeyInsights = []string{}
		result.Recommendations = []string{}
		return result, nil
	}

	a.log.Debugw("Perspective analyzed",
		"perspective", perspectiveID,
		"stage", stage,
		"confidence", rec.ConfidenceScore,
	)
	metrics.RecordPerspective(perspectiveID, "parsed")

	result.Analysis = rec.Analysis
	result.ConfidenceScore = rec.ConfidenceScore
	result.KeyInsights = rec.KeyInsights
	result.Recommendations = rec.Recommendations
	return result, nil
}

// BuildPrompt renders the composite user prompt for a perspective.
func (a *Analyzer) BuildPrompt(ctx context.Context, strategy string, p perspectives.Perspective, mentalModels []string) (string, error) {
	// Guarded: never returns an error
	extra, _ := a.context.Enhance(ctx, strategy, p.ID)

	prompt, err := a.templates.Render(templates.PerspectiveAnalysis, promptData{
		Strategy:     strategy,
		Perspective:  p,
		MentalModels: a.catalog.MentalModels(mentalModels),
		Context:      extra,
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrInternal, err.Error())
	}
	return prompt, nil
}
