package analysis

import (
	"math"
	"strings"
	"time"

	"redteam/pkg/errors"
)

// Request is one analysis job: a free-text strategy examined from several perspectives.
type Request struct {
	Strategy     string
	Perspectives []string
	MentalModels []string
}

// Validate checks the request shape. Perspective ids are checked against the catalog by the orchestrator.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Strategy) == "" {
		return errors.NewValidationError("strategy", "must not be empty", "")
	}
	if len(r.Perspectives) == 0 {
		return errors.NewValidationError("perspectives", "at least one perspective is required", r.Perspectives)
	}
	for _, p := range r.Perspectives {
		if strings.TrimSpace(p) == "" {
			return errors.NewValidationError("perspectives", "perspective id must not be blank", r.Perspectives)
		}
	}
	return nil
}

// Result is the outcome of analyzing a strategy from one perspective.
// Failed results carry confidence 0 and a user-facing explanation in Analysis.
type Result struct {
	Perspective     string    `json:"perspective"`
	Analysis        string    `json:"analysis"`
	ConfidenceScore float64   `json:"confidence_score"`
	KeyInsights     []string  `json:"key_insights"`
	Recommendations []string  `json:"recommendations"`
	Timestamp       time.Time `json:"timestamp"`
	Failed          bool      `json:"failed,omitempty"`
}

// Results is keyed by perspective id.
type Results map[string]Result

// Level is the enum used for consensus and implementation difficulty.
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// Valid checks if level is valid
func (l Level) Valid() bool {
	return l == LevelHigh || l == LevelMedium || l == LevelLow
}

// ParseLevel accepts any casing; unknown values map to Medium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return LevelHigh
	case "low":
		return LevelLow
	default:
		return LevelMedium
	}
}

// Report is the synthesized strategic report.
type Report struct {
	ExecutiveSummary         string   `json:"executive_summary"`
	CriticalInsights         []string `json:"critical_insights"`
	PriorityRecommendations  []string `json:"priority_recommendations"`
	RiskMitigation           []string `json:"risk_mitigation"`
	ImplementationRoadmap    []string `json:"implementation_roadmap"`
	SuccessMetrics           []string `json:"success_metrics"`
	ConfidenceAssessment     float64  `json:"confidence_assessment"`
	KeyAssumptionsToValidate []string `json:"key_assumptions_to_validate"`
	AlternativeApproaches    []string `json:"alternative_approaches"`
	ConsensusLevel           Level    `json:"consensus_level"`
	ImplementationDifficulty Level    `json:"implementation_difficulty"`

	// FallbackMarker is set only when the report was built without the model.
	FallbackMarker string `json:"fallback_marker,omitempty"`
}

// IsFallback reports whether the deterministic fallback produced the report.
func (r *Report) IsFallback() bool {
	return r.FallbackMarker != ""
}

// Normalize clamps confidence into [0,1], fixes enum values and replaces nil lists.
func (r *Report) Normalize() {
	r.ConfidenceAssessment = ClampConfidence(r.ConfidenceAssessment, 0.5)
	r.ConsensusLevel = ParseLevel(string(r.ConsensusLevel))
	r.ImplementationDifficulty = ParseLevel(string(r.ImplementationDifficulty))

	for _, list := range []*[]string{
		&r.CriticalInsights,
		&r.PriorityRecommendations,
		&r.RiskMitigation,
		&r.ImplementationRoadmap,
		&r.SuccessMetrics,
		&r.KeyAssumptionsToValidate,
		&r.AlternativeApproaches,
	} {
		*list = CleanList(*list)
	}
}

// ClampConfidence bounds v to [0,1]; NaN yields def.
func ClampConfidence(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return math.Max(0, math.Min(1, v))
}

// CleanList trims entries and drops empty ones. Never returns nil.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
