package templates

import (
	"fmt"
	"math"
	"strings"
	"text/template"
)

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"join":     Join,
		"upper":    strings.ToUpper,
		"percent":  Percent,
		"bullets":  Bullets,
		"numbered": Numbered,
	}
}

// Join is strings.Join with the list first, so it reads naturally in a pipeline.
func Join(items []string, sep string) string {
	return strings.Join(items, sep)
}

// Percent formats a [0,1] score as a whole percentage.
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", v*100)
}

// Bullets renders a markdown bullet list. Empty input renders a placeholder line.
func Bullets(items []string) string {
	if len(items) == 0 {
		return "- _none_"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(oneLine(item))
	}
	return b.String()
}

// Numbered renders a markdown ordered list.
func Numbered(items []string) string {
	if len(items) == 0 {
		return "_none_"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, oneLine(item))
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
