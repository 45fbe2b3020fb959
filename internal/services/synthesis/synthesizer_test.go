package synthesis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/internal/events"
	"redteam/internal/perspectives"
	"redteam/pkg/errors"
)

const validReport = `Here is the synthesis:
{
  "executive_summary": "The strategy is viable if churn stays below 5% monthly.",
  "critical_insights": ["Churn drives everything", "Acquisition costs are rising", ""],
  "priority_recommendations": ["Run a paid pilot", "Instrument retention", "Price annually"],
  "risk_mitigation": ["Cap paid spend", "Stage hiring", "Secure a credit line"],
  "implementation_roadmap": ["Phase 1 (0-3 months): pilot", "Phase 2 (3-12 months): scale", "Phase 3 (12+ months): optimize"],
  "success_metrics": ["Monthly churn < 5%", "CAC payback < 12 months", "NPS > 40"],
  "confidence_assessment": 0.72,
  "key_assumptions_to_validate": ["Users will pay $10"],
  "alternative_approaches": ["Freemium tier"],
  "consensus_level": "high",
  "implementation_difficulty": "Medium"
}
Let me know if you need anything else.`

type scriptedCaller struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []ai.CallRequest
}

func (s *scriptedCaller) Call(_ context.Context, req ai.CallRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "I cannot produce JSON today.", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

type capturingPublisher struct {
	synth []events.SynthesisCompleted
}

func (c *capturingPublisher) PublishAnalysisCompleted(context.Context, events.AnalysisCompleted) {}
func (c *capturingPublisher) PublishSynthesisCompleted(_ context.Context, ev events.SynthesisCompleted) {
	c.synth = append(c.synth, ev)
}

func threeResults() analysis.Results {
	return analysis.Results{
		"devils_advocate": {Perspective: "devils_advocate", Analysis: "Weak moat.", ConfidenceScore: 0.2,
			KeyInsights: []string{"No moat", "Easy to copy"}, Recommendations: []string{"Build switching costs"}},
		"market_forces": {Perspective: "market_forces", Analysis: "Crowded market.", ConfidenceScore: 0.4,
			KeyInsights: []string{"Crowded category"}, Recommendations: []string{"Niche down", "Partner with retailers"}},
		"risk_assessment": {Perspective: "risk_assessment", Analysis: "Regulatory exposure.", ConfidenceScore: 0.6,
			KeyInsights: []string{"Privacy regulation"}, Recommendations: []string{"Hire counsel"}},
	}
}

func newSynth(caller ai.Caller, pub events.Publisher) *Synthesizer {
	return New(caller, perspectives.Default(), pub, Config{MaxTokens: 6000})
}

func TestSynthesizeParsesModelReport(t *testing.T) {
	caller := &scriptedCaller{replies: []string{validReport}}
	pub := &capturingPublisher{}

	report := newSynth(caller, pub).Synthesize(context.Background(), "Launch a subscription app", threeResults())

	require.NotNil(t, report)
	assert.False(t, report.IsFallback())
	assert.Equal(t, "The strategy is viable if churn stays below 5% monthly.", report.ExecutiveSummary)
	assert.Equal(t, []string{"Churn drives everything", "Acquisition costs are rising"}, report.CriticalInsights)
	assert.InDelta(t, 0.72, report.ConfidenceAssessment, 1e-9)
	assert.Equal(t, analysis.LevelHigh, report.ConsensusLevel)
	assert.Equal(t, analysis.LevelMedium, report.ImplementationDifficulty)

	require.Len(t, caller.requests, 1)
	req := caller.requests[0]
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, 6000, req.MaxTokens)
	assert.Contains(t, req.Prompt, "--- DEVIL'S ADVOCATE PERSPECTIVE ---")
	assert.Contains(t, req.Prompt, "Confidence: 0.20")
	assert.Contains(t, req.Prompt, "Key Insights: No moat, Easy to copy")
	assert.NotContains(t, req.Prompt, "PREVIOUS RESPONSE")

	require.Len(t, pub.synth, 1)
	assert.False(t, pub.synth[0].Fallback)
	assert.Equal(t, 1, pub.synth[0].Attempts)
}

func TestSynthesizeRetriesWithFailureReason(t *testing.T) {
	caller := &scriptedCaller{replies: []string{
		`{"executive_summary": "Partial", "critical_insights": []}`,
		validReport,
	}}

	report := newSynth(caller, nil).Synthesize(context.Background(), "strategy", threeResults())
	assert.False(t, report.IsFallback())

	require.Len(t, caller.requests, 2)
	assert.Contains(t, caller.requests[1].Prompt, "YOUR PREVIOUS RESPONSE WAS REJECTED")
	assert.Contains(t, caller.requests[1].Prompt, "priority_recommendations")
}

func TestSynthesizeFallsBackOnProse(t *testing.T) {
	caller := &scriptedCaller{replies: []string{"Overall the strategy looks promising but risky."}}
	pub := &capturingPublisher{}

	report := newSynth(caller, pub).Synthesize(context.Background(), "strategy", threeResults())

	require.NotNil(t, report)
	assert.True(t, report.IsFallback())
	assert.Contains(t, report.FallbackMarker, "no JSON object")
	assert.InDelta(t, 0.4, report.ConfidenceAssessment, 1e-9)
	assert.Len(t, caller.requests, 3)

	// Pooled in sorted perspective order
	assert.Equal(t, []string{"No moat", "Easy to copy", "Crowded category"}, report.CriticalInsights)
	assert.Equal(t, []string{"Build switching costs", "Niche down", "Partner with retailers"}, report.PriorityRecommendations)
	assert.Equal(t, analysis.LevelMedium, report.ConsensusLevel)
	assert.Equal(t, analysis.LevelMedium, report.ImplementationDifficulty)

	require.Len(t, pub.synth, 1)
	assert.True(t, pub.synth[0].Fallback)
	assert.Equal(t, 3, pub.synth[0].Attempts)
}

func TestSynthesizeFallsBackOnGatewayError(t *testing.T) {
	caller := &scriptedCaller{err: &ai.ProviderError{Provider: "anthropic", Kind: ai.KindOverloaded, StatusCode: 529}}

	report := newSynth(caller, nil).Synthesize(context.Background(), "strategy", threeResults())
	assert.True(t, report.IsFallback())
	assert.Contains(t, report.FallbackMarker, "overloaded")
	assert.Len(t, caller.requests, 1)
}

func TestSynthesizeNeverFails(t *testing.T) {
	single := analysis.Results{
		"devils_advocate": {Perspective: "devils_advocate", Analysis: "Analysis failed: rate limit exceeded", Failed: true},
	}
	inputs := []analysis.Results{nil, {}, single}

	for _, results := range inputs {
		caller := &scriptedCaller{replies: []string{"{not json"}}
		report := newSynth(caller, nil).Synthesize(context.Background(), "strategy", results)

		require.NotNil(t, report)
		assert.True(t, report.IsFallback())
		assert.GreaterOrEqual(t, report.ConfidenceAssessment, 0.0)
		assert.LessOrEqual(t, report.ConfidenceAssessment, 1.0)
		assert.NotEmpty(t, report.ExecutiveSummary)
		assert.NotEmpty(t, report.CriticalInsights)
		assert.NotEmpty(t, report.PriorityRecommendations)
		assert.NotEmpty(t, report.RiskMitigation)
		assert.NotEmpty(t, report.ImplementationRoadmap)
		assert.True(t, report.ConsensusLevel.Valid())
	}

	report := newSynth(&scriptedCaller{}, nil).Synthesize(context.Background(), "strategy", nil)
	assert.Equal(t, 0.5, report.ConfidenceAssessment)
	assert.Contains(t, report.FallbackMarker, errors.ErrEmptyResults.Error())

	report = newSynth(&scriptedCaller{}, nil).Synthesize(context.Background(), "strategy", single)
	assert.Equal(t, 0.0, report.ConfidenceAssessment)
}

func TestParseReportValidation(t *testing.T) {
	tests := map[string]string{
		"no object":        "plain prose",
		"broken json":      `{"executive_summary": "x",`,
		"missing fields":   `{"executive_summary": "x", "critical_insights": []}`,
		"empty summary":    `{"executive_summary": " ", "critical_insights": [], "priority_recommendations": [], "risk_mitigation": [], "implementation_roadmap": [], "confidence_assessment": 0.5}`,
		"non-numeric conf": `{"executive_summary": "x", "critical_insights": [], "priority_recommendations": [], "risk_mitigation": [], "implementation_roadmap": [], "confidence_assessment": "high"}`,
	}
	for name, raw := range tests {
		_, err := ParseReport(raw)
		assert.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), name)
	}
}

func TestParseReportNormalizes(t *testing.T) {
	report, err := ParseReport(`{"executive_summary": "Summary.", "critical_insights": "single", "priority_recommendations": [], "risk_mitigation": [], "implementation_roadmap": [], "confidence_assessment": "1.4", "consensus_level": "unanimous"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.ConfidenceAssessment)
	assert.Equal(t, []string{"single"}, report.CriticalInsights)
	assert.Equal(t, analysis.LevelMedium, report.ConsensusLevel)
	assert.NotNil(t, report.SuccessMetrics)
}
