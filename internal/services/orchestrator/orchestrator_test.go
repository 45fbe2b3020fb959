package orchestrator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/internal/events"
	"redteam/internal/perspectives"
	"redteam/internal/services/analyzer"
	"redteam/pkg/errors"
)

type analyzeFunc func(ctx context.Context, strategy, id string, models []string) (analysis.Result, error)

func (f analyzeFunc) Analyze(ctx context.Context, strategy, id string, models []string) (analysis.Result, error) {
	return f(ctx, strategy, id, models)
}

type progressEvent struct {
	fraction float64
	message  string
}

type progressRecorder struct {
	mu     sync.Mutex
	events []progressEvent
}

func (p *progressRecorder) record(fraction float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, progressEvent{fraction, message})
}

type capturingPublisher struct {
	mu       sync.Mutex
	analyses []events.AnalysisCompleted
}

func (c *capturingPublisher) PublishAnalysisCompleted(_ context.Context, ev events.AnalysisCompleted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyses = append(c.analyses, ev)
}

func (c *capturingPublisher) PublishSynthesisCompleted(context.Context, events.SynthesisCompleted) {}

func newOrchestrator(a PerspectiveAnalyzer, cfg Config) *Orchestrator {
	return New(a, perspectives.Default(), nil, nil, cfg)
}

func okResult(id string, confidence float64) analysis.Result {
	return analysis.Result{
		Perspective:     id,
		Analysis:        "A sufficiently detailed analysis from " + id,
		ConfidenceScore: confidence,
		KeyInsights:     []string{"insight from " + id},
		Recommendations: []string{"recommendation from " + id},
		Timestamp:       time.Now(),
	}
}

type fixedCaller struct {
	reply string
	err   error
}

func (f fixedCaller) Call(context.Context, ai.CallRequest) (string, error) {
	return f.reply, f.err
}

func TestSinglePerspectiveEndToEnd(t *testing.T) {
	caller := fixedCaller{reply: `{"analysis": "A $10 subscription needs unusually low churn to pay back acquisition.", "confidence_score": 0.73, "key_insights": ["Churn drives viability"], "recommendations": ["Measure retention early"]}`}
	a := analyzer.New(caller, perspectives.Default(), nil, analyzer.Config{})
	o := newOrchestrator(a, Config{MaxConcurrency: 3})

	results, err := o.AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Launch a $10/month subscription app",
		Perspectives: []string{"devils_advocate"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	res := results["devils_advocate"]
	assert.InDelta(t, 0.73, res.ConfidenceScore, 1e-9)
	assert.Equal(t, "A $10 subscription needs unusually low churn to pay back acquisition.", res.Analysis)
	assert.False(t, res.Failed)
}

func TestRateLimitFailureBecomesResult(t *testing.T) {
	caller := fixedCaller{err: &ai.ProviderError{Provider: "anthropic", Kind: ai.KindRateLimit, StatusCode: 429, Message: "rate limited"}}
	a := analyzer.New(caller, perspectives.Default(), nil, analyzer.Config{})
	o := newOrchestrator(a, Config{MaxConcurrency: 2})

	results, err := o.AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Expand into three new regions next quarter",
		Perspectives: []string{"devils_advocate", "risk_assessment"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	for id, res := range results {
		assert.Equal(t, 0.0, res.ConfidenceScore, id)
		assert.True(t, res.Failed, id)
		assert.Contains(t, strings.ToLower(res.Analysis), "rate limit", id)
		assert.NotNil(t, res.KeyInsights)
	}
}

func TestResultKeysMatchRequestUnderPartialFailure(t *testing.T) {
	requested := []string{"devils_advocate", "systems_thinker", "historical_analyst", "stakeholder_advocate", "risk_assessment", "resource_realist", "market_forces"}

	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		switch id {
		case "systems_thinker":
			return analysis.Result{}, &ai.ProviderError{Kind: ai.KindOverloaded}
		case "historical_analyst":
			return analysis.Result{}, &ai.ProviderError{Kind: ai.KindAuth}
		case "market_forces":
			panic("unexpected nil")
		case "resource_realist":
			return okResult(id, 7.5), nil
		}
		return okResult(id, 0.6), nil
	})

	results, err := newOrchestrator(a, Config{MaxConcurrency: 3}).AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Replace the sales team with a self-serve funnel",
		Perspectives: requested,
	}, nil)
	require.NoError(t, err)

	keys := results.Keys()
	want := append([]string(nil), requested...)
	sort.Strings(want)
	assert.Equal(t, want, keys)

	for id, res := range results {
		assert.GreaterOrEqual(t, res.ConfidenceScore, 0.0, id)
		assert.LessOrEqual(t, res.ConfidenceScore, 1.0, id)
		assert.Equal(t, id, res.Perspective)
	}
	assert.Equal(t, 1.0, results["resource_realist"].ConfidenceScore)
	assert.Contains(t, results["systems_thinker"].Analysis, "overloaded")
	assert.Contains(t, results["historical_analyst"].Analysis, "authentication")
	assert.True(t, results["market_forces"].Failed)
}

func TestProgressOrder(t *testing.T) {
	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		return okResult(id, 0.5), nil
	})

	rec := &progressRecorder{}
	_, err := newOrchestrator(a, Config{MaxConcurrency: 1}).AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Open a flagship store",
		Perspectives: []string{"risk_assessment", "market_forces", "devils_advocate"},
	}, rec.record)
	require.NoError(t, err)

	require.Len(t, rec.events, 4)
	assert.Equal(t, progressEvent{0, "Analyzing from Risk Assessment perspective..."}, rec.events[0])
	assert.InDelta(t, 1.0/3, rec.events[1].fraction, 1e-9)
	assert.Equal(t, "Analyzing from Market Forces perspective...", rec.events[1].message)
	assert.InDelta(t, 2.0/3, rec.events[2].fraction, 1e-9)
	assert.Equal(t, progressEvent{1.0, CompletionMessage}, rec.events[3])
}

func TestConcurrencyCapHoldsSlotThroughDelay(t *testing.T) {
	const delay = 150 * time.Millisecond

	var mu sync.Mutex
	var starts, ends []time.Time
	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()
		return okResult(id, 0.5), nil
	})

	_, err := newOrchestrator(a, Config{MaxConcurrency: 1, RateLimitDelay: delay}).AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Sell the legacy business unit",
		Perspectives: []string{"devils_advocate", "market_forces"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, starts, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(ends[0]), delay)
}

func TestConcurrencyNeverExceedsCap(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return okResult(id, 0.5), nil
	})

	_, err := newOrchestrator(a, Config{MaxConcurrency: 2}).AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Move manufacturing closer to customers",
		Perspectives: perspectives.Default().IDs(),
	}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestRejectsInvalidRequests(t *testing.T) {
	called := false
	a := analyzeFunc(func(context.Context, string, string, []string) (analysis.Result, error) {
		called = true
		return analysis.Result{}, nil
	})
	o := newOrchestrator(a, Config{MaxStrategyLength: 50})

	_, err := o.AnalyzeStrategy(context.Background(), analysis.Request{Strategy: "x", Perspectives: []string{"oracle"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrUnknownPerspective))

	_, err = o.AnalyzeStrategy(context.Background(), analysis.Request{Strategy: "x"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = o.AnalyzeStrategy(context.Background(), analysis.Request{Strategy: strings.Repeat("a", 51), Perspectives: []string{"devils_advocate"}}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	assert.False(t, called)
}

func TestDuplicatePerspectivesAnalyzedOnce(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		mu.Lock()
		calls[id]++
		mu.Unlock()
		return okResult(id, 0.5), nil
	})

	results, err := newOrchestrator(a, Config{}).AnalyzeStrategy(context.Background(), analysis.Request{
		Strategy:     "Acquire a competitor",
		Perspectives: []string{"devils_advocate", " devils_advocate", "market_forces"},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, map[string]int{"devils_advocate": 1, "market_forces": 1}, calls)
}

func TestCancelledRunStillCoversEveryPerspective(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := analyzeFunc(func(ctx context.Context, _, id string, _ []string) (analysis.Result, error) {
		cancel()
		<-ctx.Done()
		return analysis.Result{}, ctx.Err()
	})

	results, err := newOrchestrator(a, Config{MaxConcurrency: 1}).AnalyzeStrategy(ctx, analysis.Request{
		Strategy:     "Pivot to enterprise customers",
		Perspectives: []string{"devils_advocate", "market_forces", "risk_assessment"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for id, res := range results {
		assert.True(t, res.Failed, id)
		assert.Contains(t, res.Analysis, "cancelled", id)
	}
}

func TestPublishesCompletionEvent(t *testing.T) {
	pub := &capturingPublisher{}
	a := analyzeFunc(func(_ context.Context, _, id string, _ []string) (analysis.Result, error) {
		return okResult(id, 0.8), nil
	})
	o := New(a, perspectives.Default(), pub, nil, Config{})

	ctx := analysis.WithRunID(context.Background(), "run-42")
	_, err := o.AnalyzeStrategy(ctx, analysis.Request{Strategy: "Launch a loyalty program", Perspectives: []string{"market_forces"}}, nil)
	require.NoError(t, err)

	require.Len(t, pub.analyses, 1)
	assert.Equal(t, "run-42", pub.analyses[0].RunID)
	assert.InDelta(t, 0.8, pub.analyses[0].Stats.AverageConfidence, 1e-9)
}

func TestFailureMessages(t *testing.T) {
	tests := map[ai.ErrorKind]string{
		ai.KindAuth:         "authentication",
		ai.KindRateLimit:    "rate limit",
		ai.KindOverloaded:   "overloaded",
		ai.KindTimeout:      "timed out",
		ai.KindUnknownModel: "model was not found",
		ai.KindGeneric:      "Analysis failed",
	}
	for kind, want := range tests {
		assert.Contains(t, FailureMessage(&ai.ProviderError{Provider: "anthropic", Kind: kind}), want, string(kind))
	}
	assert.Contains(t, FailureMessage(context.Canceled), "cancelled")
}
