package coercer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"redteam/internal/domain/analysis"
)

// DefaultMinAnalysisLength is the shortest trimmed analysis accepted.
const DefaultMinAnalysisLength = 20

// DefaultConfidence is used when the model omits or garbles confidence_score.
const DefaultConfidence = 0.5

// Stage names the ladder step that produced a record.
type Stage string

const (
	StageDirect    Stage = "direct"
	StageTrimmed   Stage = "trimmed"
	StageCandidate Stage = "candidate"
	StageNone      Stage = "none"
)

var fieldMarker = regexp.MustCompile(`"(analysis|confidence_score|key_insights|recommendations)"\s*:`)

// Record is the structured form of a perspective response.
type Record struct {
	Analysis        string   `json:"analysis"`
	ConfidenceScore float64  `json:"confidence_score"`
	KeyInsights     []string `json:"key_insights"`
	Recommendations []string `json:"recommendations"`
}

// Coercer recovers a Record from model text. Safe for concurrent use.
type Coercer struct {
	minLength int
}

// New creates a coercer. minLength <= 0 uses DefaultMinAnalysisLength.
func New(minLength int) *Coercer {
	if minLength <= 0 {
		minLength = DefaultMinAnalysisLength
	}
	return &Coercer{minLength: minLength}
}

// Coerce returns nil when no step of the ladder yields a valid record.
func (c *Coercer) Coerce(raw string) *Record {
	rec, _ := c.CoerceStage(raw)
	return rec
}

// CoerceStage is Coerce plus the ladder step that succeeded.
func (c *Coercer) CoerceStage(raw string) (*Record, Stage) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, StageNone
	}

	if rec := c.decode(text); rec != nil {
		return rec, StageDirect
	}

	if inner, ok := outermostObject(stripFences(text)); ok {
		if rec := c.decode(inner); rec != nil {
			return rec, StageTrimmed
		}
	}

	for _, candidate := range candidates(text) {
		if rec := c.decode(candidate); rec != nil {
			return rec, StageCandidate
		}
	}

	return nil, StageNone
}

// decode parses one JSON object and validates it.
func (c *Coercer) decode(s string) *Record {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil
	}

	rec := &Record{
		Analysis:        strings.TrimSpace(toString(fields["analysis"])),
		ConfidenceScore: toConfidence(fields["confidence_score"]),
		KeyInsights:     toStringList(fields["key_insights"]),
		Recommendations: toStringList(fields["recommendations"]),
	}

	if utf8.RuneCountInString(rec.Analysis) < c.minLength {
		return nil
	}
	return rec
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func outermostObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// candidates returns every balanced {...} substring that mentions a
// required field, largest first.
func candidates(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			continue
		}
		obj := s[i : end+1]
		if _, dup := seen[obj]; dup || !fieldMarker.MatchString(obj) {
			continue
		}
		seen[obj] = struct{}{}
		out = append(out, obj)
	}
	sort.SliceStable(out, func(a, b int) bool { return len(out[a]) > len(out[b]) })
	return out
}

// matchBrace returns the index of the brace closing s[open], honoring JSON
// string literals, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func toConfidence(v any) float64 {
	switch t := v.(type) {
	case float64:
		return analysis.ClampConfidence(t, DefaultConfidence)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return DefaultConfidence
		}
		return analysis.ClampConfidence(f, DefaultConfidence)
	default:
		return DefaultConfidence
	}
}

// toStringList accepts an array or a single string and drops falsy entries.
func toStringList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case string:
		items = []any{t}
	default:
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case nil:
			continue
		case bool:
			if !t {
				continue
			}
		case float64:
			if t == 0 {
				continue
			}
		}
		if s := strings.TrimSpace(toString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
