package synthesis

import (
	"fmt"

	"redteam/internal/domain/analysis"
)

// fallbackItems is how many pooled insights and recommendations the fallback keeps.
const fallbackItems = 3

// Fallback builds a schema-valid report from the results alone. It never fails.
func Fallback(results analysis.Results, cause error) *analysis.Report {
	var insights, recs []string
	sum := 0.0
	for _, id := range results.Keys() {
		r := results[id]
		sum += analysis.ClampConfidence(r.ConfidenceScore, 0)
		insights = append(insights, analysis.CleanList(r.KeyInsights)...)
		recs = append(recs, analysis.CleanList(r.Recommendations)...)
	}

	confidence := 0.5
	if len(results) > 0 {
		confidence = sum / float64(len(results))
	}

	insights = firstN(insights, fallbackItems)
	if len(insights) == 0 {
		insights = []string{
			"Review the individual perspective analyses for detailed findings",
			"No cross-cutting insights could be extracted automatically",
		}
	}
	recs = firstN(recs, fallbackItems)
	if len(recs) == 0 {
		recs = []string{
			"Review each perspective's analysis manually before acting",
			"Re-run the synthesis once the model provider is available",
		}
	}

	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}

	report := &analysis.Report{
		ExecutiveSummary: fmt.Sprintf(
			"Automated synthesis was unavailable, so this summary aggregates %d perspective analyses directly. "+
				"Average confidence across perspectives is %.0f%%.", len(results), confidence*100),
		CriticalInsights:        insights,
		PriorityRecommendations: recs,
		RiskMitigation: []string{
			"Address the highest-impact risks raised in the individual perspectives first",
			"Set up early warning indicators for the failure modes identified",
			"Prepare contingency plans for the assumptions most likely to be wrong",
		},
		ImplementationRoadmap: []string{
			"Phase 1 (0-3 months): Validate critical assumptions and secure quick wins",
			"Phase 2 (3-12 months): Execute the core initiatives with regular checkpoints",
			"Phase 3 (12+ months): Scale what works and revisit the strategy",
		},
		SuccessMetrics: []string{
			"Progress against the primary quantitative target of the strategy",
			"Leading indicators of adoption and stakeholder support",
			"Long-term impact on competitive position",
		},
		ConfidenceAssessment: confidence,
		KeyAssumptionsToValidate: []string{
			"The assumptions challenged by the individual perspectives",
			"Resource and timeline estimates underlying the plan",
		},
		AlternativeApproaches: []string{
			"A phased rollout that limits exposure while assumptions are tested",
			"A reduced-scope version that addresses the most critical risks first",
		},
		ConsensusLevel:           analysis.LevelMedium,
		ImplementationDifficulty: analysis.LevelMedium,
		FallbackMarker:           "fallback synthesis: " + reason,
	}
	report.Normalize()
	return report
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
