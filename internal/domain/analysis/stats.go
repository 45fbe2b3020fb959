package analysis

import "sort"

// MaxPerspectives is the size of the full perspective catalog, used for the breadth score.
const MaxPerspectives = 7

// Extreme names the perspective holding the highest or lowest confidence.
type Extreme struct {
	Perspective string  `json:"perspective"`
	Confidence  float64 `json:"confidence"`
}

// Stats summarizes a result set.
type Stats struct {
	Total                int      `json:"total_perspectives"`
	Failed               int      `json:"failed_perspectives"`
	AverageConfidence    float64  `json:"average_confidence"`
	TotalInsights        int      `json:"total_insights"`
	TotalRecommendations int      `json:"total_recommendations"`
	Highest              *Extreme `json:"highest_confidence,omitempty"`
	Lowest               *Extreme `json:"lowest_confidence,omitempty"`
	BreadthScore         float64  `json:"analysis_breadth_score"`
}

// Summarize computes summary statistics. Ties on confidence resolve to the
// alphabetically first perspective so output is stable.
func Summarize(results Results) Stats {
	var s Stats
	if len(results) == 0 {
		return s
	}

	var sum float64
	for _, k := range results.Keys() {
		r := results[k]
		sum += r.ConfidenceScore
		s.TotalInsights += len(r.KeyInsights)
		s.TotalRecommendations += len(r.Recommendations)
		if r.Failed {
			s.Failed++
		}

		if s.Highest == nil || r.ConfidenceScore > s.Highest.Confidence {
			s.Highest = &Extreme{Perspective: k, Confidence: r.ConfidenceScore}
		}
		if s.Lowest == nil || r.ConfidenceScore < s.Lowest.Confidence {
			s.Lowest = &Extreme{Perspective: k, Confidence: r.ConfidenceScore}
		}
	}

	s.Total = len(results)
	s.AverageConfidence = sum / float64(s.Total)
	s.BreadthScore = float64(s.Total) / MaxPerspectives
	if s.BreadthScore > 1 {
		s.BreadthScore = 1
	}
	return s
}

// Keys returns the perspective ids in sorted order.
func (r Results) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
