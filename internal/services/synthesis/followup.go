package synthesis

import (
	"context"
	"regexp"
	"strings"

	"redteam/internal/adapters/ai"
	"redteam/internal/domain/analysis"
	"redteam/pkg/errors"
	"redteam/pkg/templates"
)

// insightsPerConcern is how many insights of each perspective seed the questions.
const insightsPerConcern = 2

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)]|Q\d+[:.)])\s*`)

type concern struct {
	Label    string
	Insights []string
}

type followUpData struct {
	Strategy string
	Concerns []concern
	Min      int
	Max      int
}

// FollowUpQuestions asks the model for questions that probe the gaps the
// analyses exposed. Unlike Synthesize it returns the gateway error.
func (s *Synthesizer) FollowUpQuestions(ctx context.Context, strategy string, results analysis.Results) ([]string, error) {
	if len(results) == 0 {
		return nil, errors.ErrEmptyResults
	}

	data := followUpData{Strategy: strategy, Min: min(5, s.cfg.FollowUpMax), Max: s.cfg.FollowUpMax}
	for _, id := range orderedIDs(s.catalog, results) {
		r := results[id]
		if r.Failed {
			continue
		}
		data.Concerns = append(data.Concerns, concern{
			Label:    s.catalog.Label(id),
			Insights: firstN(analysis.CleanList(r.KeyInsights), insightsPerConcern),
		})
	}

	prompt, err := s.templates.Render(templates.FollowUp, data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, err.Error())
	}

	raw, err := s.caller.Call(ctx, ai.CallRequest{
		Prompt:      prompt,
		MaxTokens:   1000,
		Temperature: s.cfg.Temperature,
		Timeout:     s.cfg.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "follow-up questions")
	}

	return ParseQuestions(raw, s.cfg.FollowUpMax), nil
}

// ParseQuestions splits a model reply into questions, stripping list markers.
// When any line is a question, lines without a question mark are treated as
// headings and dropped.
func ParseQuestions(raw string, limit int) []string {
	var lines []string
	hasQuestion := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*_ ")
		if line == "" {
			continue
		}
		if strings.Contains(line, "?") {
			hasQuestion = true
		}
		lines = append(lines, line)
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if hasQuestion && !strings.Contains(line, "?") {
			continue
		}
		out = append(out, line)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
