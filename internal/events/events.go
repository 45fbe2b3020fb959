package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"redteam/internal/domain/analysis"
)

// Event types
const (
	TypeAnalysisCompleted  = "analysis.completed"
	TypeSynthesisCompleted = "synthesis.completed"
)

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a new base event with defaults
func NewBaseEvent(eventType, source, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Version:   "1.0",
	}
}

// PerspectiveOutcome is the per-perspective summary carried in AnalysisCompleted.
type PerspectiveOutcome struct {
	Perspective     string  `json:"perspective"`
	Confidence      float64 `json:"confidence"`
	Insights        int     `json:"insights"`
	Recommendations int     `json:"recommendations"`
	Failed          bool    `json:"failed"`
}

// AnalysisCompleted is emitted once the orchestrator has a result for every perspective.
type AnalysisCompleted struct {
	BaseEvent
	Perspectives []PerspectiveOutcome `json:"perspectives"`
	Stats        analysis.Stats       `json:"stats"`
	DurationMs   int64                `json:"duration_ms"`
}

// NewAnalysisCompleted builds the event from a result set. Outcomes are sorted by perspective id.
func NewAnalysisCompleted(runID string, results analysis.Results, duration time.Duration) AnalysisCompleted {
	ev := AnalysisCompleted{
		BaseEvent:    NewBaseEvent(TypeAnalysisCompleted, "orchestrator", runID),
		Perspectives: make([]PerspectiveOutcome, 0, len(results)),
		Stats:        analysis.Summarize(results),
		DurationMs:   duration.Milliseconds(),
	}
	for _, id := range results.Keys() {
		r := results[id]
		ev.Perspectives = append(ev.Perspectives, PerspectiveOutcome{
			Perspective:     id,
			Confidence:      r.ConfidenceScore,
			Insights:        len(r.KeyInsights),
			Recommendations: len(r.Recommendations),
			Failed:          r.Failed,
		})
	}
	return ev
}

// SynthesisCompleted is emitted after every synthesis, fallback included.
type SynthesisCompleted struct {
	BaseEvent
	Fallback       bool           `json:"fallback"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Confidence     float64        `json:"confidence"`
	Consensus      analysis.Level `json:"consensus_level"`
	Difficulty     analysis.Level `json:"implementation_difficulty"`
	Attempts       int            `json:"attempts"`
}

// NewSynthesisCompleted builds the event from a report.
func NewSynthesisCompleted(runID string, report *analysis.Report, attempts int) SynthesisCompleted {
	return SynthesisCompleted{
		BaseEvent:      NewBaseEvent(TypeSynthesisCompleted, "synthesizer", runID),
		Fallback:       report.IsFallback(),
		FallbackReason: SanitizeUTF8(report.FallbackMarker),
		Confidence:     report.ConfidenceAssessment,
		Consensus:      report.ConsensusLevel,
		Difficulty:     report.ImplementationDifficulty,
		Attempts:       attempts,
	}
}

// SanitizeUTF8 drops invalid UTF-8 sequences. Provider error text is not
// guaranteed to be valid and JSON encoding would mangle it.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
