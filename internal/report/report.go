package report

import (
	"encoding/json"
	"time"

	"redteam/internal/domain/analysis"
	"redteam/internal/perspectives"
	"redteam/pkg/errors"
	"redteam/pkg/templates"
)

// Input is everything one run produced.
type Input struct {
	RunID     string
	Strategy  string
	Results   analysis.Results
	Report    *analysis.Report
	FollowUps []string
	Generated time.Time
}

// Section is one perspective's result with its display label.
type Section struct {
	ID              string   `json:"id"`
	Label           string   `json:"label"`
	Confidence      float64  `json:"confidence_score"`
	Analysis        string   `json:"analysis"`
	Insights        []string `json:"key_insights"`
	Recommendations []string `json:"recommendations"`
	Failed          bool     `json:"failed,omitempty"`
}

// Extreme is a labeled confidence extreme.
type Extreme struct {
	Label      string
	Confidence float64
}

// Document is the exported view of a run, ordered for reading.
type Document struct {
	RunID     string           `json:"run_id,omitempty"`
	Generated time.Time        `json:"generated_at"`
	Strategy  string           `json:"strategy"`
	Stats     analysis.Stats   `json:"stats"`
	Sections  []Section        `json:"perspectives"`
	Report    *analysis.Report `json:"synthesis,omitempty"`
	FollowUps []string         `json:"follow_up_questions,omitempty"`

	Highest *Extreme `json:"-"`
	Lowest  *Extreme `json:"-"`
}

// GeneratedAt formats the generation time for the markdown header.
func (d Document) GeneratedAt() string {
	return d.Generated.UTC().Format("2006-01-02 15:04 UTC")
}

// Build assembles a document. Perspectives follow catalog order.
func Build(catalog *perspectives.Catalog, in Input) Document {
	if in.Generated.IsZero() {
		in.Generated = time.Now()
	}

	doc := Document{
		RunID:     in.RunID,
		Generated: in.Generated,
		Strategy:  in.Strategy,
		Stats:     analysis.Summarize(in.Results),
		Report:    in.Report,
		FollowUps: in.FollowUps,
	}

	for _, id := range catalog.Order(in.Results.Keys()) {
		r := in.Results[id]
		doc.Sections = append(doc.Sections, Section{
			ID:              id,
			Label:           catalog.Label(id),
			Confidence:      r.ConfidenceScore,
			Analysis:        r.Analysis,
			Insights:        r.KeyInsights,
			Recommendations: r.Recommendations,
			Failed:          r.Failed,
		})
	}

	if h := doc.Stats.Highest; h != nil {
		doc.Highest = &Extreme{Label: catalog.Label(h.Perspective), Confidence: h.Confidence}
	}
	if l := doc.Stats.Lowest; l != nil {
		doc.Lowest = &Extreme{Label: catalog.Label(l.Perspective), Confidence: l.Confidence}
	}
	return doc
}

// Markdown renders the document with the embedded report template.
func Markdown(doc Document) (string, error) {
	out, err := templates.Get().Render(templates.MarkdownReport, doc)
	if err != nil {
		return "", errors.Wrap(err, "render markdown report")
	}
	return out, nil
}

// JSON renders the document as indented JSON.
func JSON(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal report")
	}
	return data, nil
}
