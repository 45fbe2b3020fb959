package synthesis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"redteam/internal/domain/analysis"
	"redteam/pkg/errors"
)

// RequiredFields must be present in every model-produced report.
var RequiredFields = []string{
	"executive_summary",
	"critical_insights",
	"priority_recommendations",
	"risk_mitigation",
	"implementation_roadmap",
	"confidence_assessment",
}

// ParseReport extracts the JSON object between the first '{' and the last
// '}' and validates it. The returned report is normalized.
func ParseReport(raw string) (*analysis.Report, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.Wrap(errors.ErrInvalidInput, "response contains no JSON object")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "response is not valid JSON: %v", err)
	}

	var missing []string
	for _, f := range RequiredFields {
		if v, ok := fields[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "missing required fields: %s", strings.Join(missing, ", "))
	}

	summary, ok := fields["executive_summary"].(string)
	if !ok || strings.TrimSpace(summary) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "executive_summary must be a non-empty string")
	}

	confidence, err := toFloat(fields["confidence_assessment"])
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "confidence_assessment: %v", err)
	}

	report := &analysis.Report{
		ExecutiveSummary:         strings.TrimSpace(summary),
		CriticalInsights:         toStrings(fields["critical_insights"]),
		PriorityRecommendations:  toStrings(fields["priority_recommendations"]),
		RiskMitigation:           toStrings(fields["risk_mitigation"]),
		ImplementationRoadmap:    toStrings(fields["implementation_roadmap"]),
		SuccessMetrics:           toStrings(fields["success_metrics"]),
		ConfidenceAssessment:     confidence,
		KeyAssumptionsToValidate: toStrings(fields["key_assumptions_to_validate"]),
		AlternativeApproaches:    toStrings(fields["alternative_approaches"]),
		ConsensusLevel:           analysis.Level(toString(fields["consensus_level"])),
		ImplementationDifficulty: analysis.Level(toString(fields["implementation_difficulty"])),
	}
	report.Normalize()
	return report, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// toStrings accepts a list or a single string; nested values are stringified.
func toStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case nil:
			case string:
				out = append(out, it)
			default:
				b, err := json.Marshal(it)
				if err != nil {
					out = append(out, fmt.Sprint(it))
				} else {
					out = append(out, string(b))
				}
			}
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}
