package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/internal/adapters/ai"
	"redteam/internal/adapters/config"
	"redteam/internal/bootstrap"
	"redteam/pkg/errors"
)

const testStrategy = "Launch a subscription tier for small agencies, priced at half of the enterprise plan, sold only online."

type fakeCaller struct {
	err error
}

func (f *fakeCaller) Call(_ context.Context, req ai.CallRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.Contains(req.Prompt, "ANALYSIS RESULTS:"):
		return `{"executive_summary": "Price the tier above cost of support.", "critical_insights": ["support load"],
			"priority_recommendations": ["cap seats"], "risk_mitigation": ["monitor churn"],
			"implementation_roadmap": ["Phase 1: beta"], "success_metrics": ["net retention"],
			"confidence_assessment": 0.7, "key_assumptions_to_validate": ["agencies self-serve"],
			"alternative_approaches": ["partner resale"], "consensus_level": "Medium", "implementation_difficulty": "Low"}`, nil
	case strings.Contains(req.Prompt, "follow-up questions"):
		return "1. Who handles onboarding?\n2. What churn rate breaks even?", nil
	case req.Prompt == probePrompt:
		return "Connection test successful", nil
	default:
		return `{"analysis": "Agencies churn quickly when budgets tighten.", "confidence_score": 0.6,
			"key_insights": ["budget sensitivity"], "recommendations": ["annual billing"]}`, nil
	}
}

func stubDeps(t *testing.T, caller ai.Caller) {
	t.Helper()
	origLoad, origNew := loadConfig, newContainer
	t.Cleanup(func() { loadConfig, newContainer = origLoad, origNew })

	loadConfig = func() (*config.Config, error) {
		cfg := config.Default()
		cfg.App.LogLevel = "error"
		cfg.Analysis.RateLimitDelay = 0
		return &cfg, nil
	}
	newContainer = func(ctx context.Context, cfg *config.Config) (*bootstrap.Container, error) {
		return bootstrap.New(ctx, cfg, bootstrap.WithCaller(caller))
	}
}

func execute(args []string, stdin string) (string, string, error) {
	cmd := NewRoot()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommands(t *testing.T) {
	cmd := NewRoot()
	assert.Equal(t, "redteam", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"analyze", "perspectives", "check"})
}

func TestAnalyzeMarkdownFromStdin(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	out, errOut, err := execute([]string{"analyze", "-p", "devils_advocate,market_forces", "--follow-up"}, testStrategy)
	require.NoError(t, err)

	assert.Contains(t, out, "## Strategy\n\n"+testStrategy)
	assert.Contains(t, out, "### Devil's Advocate (60%)")
	assert.Contains(t, out, "### Market Forces (60%)")
	assert.Contains(t, out, "Price the tier above cost of support.")
	assert.Contains(t, out, "1. Who handles onboarding?")

	assert.Contains(t, errOut, "[  0%] Analyzing from Devil's Advocate perspective...")
	assert.Contains(t, errOut, "[100%] Analysis complete!")
	assert.Contains(t, errOut, "Analyzed 2 perspectives (0 failed)")
}

func TestAnalyzeJSONToFile(t *testing.T) {
	stubDeps(t, &fakeCaller{})
	path := filepath.Join(t.TempDir(), "report.json")

	_, errOut, err := execute([]string{
		"analyze", "--format", "json", "--synthesize=false", "-o", path, "-p", "risk_assessment", testStrategy,
	}, "")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Report written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, testStrategy, decoded["strategy"])
	assert.NotContains(t, decoded, "synthesis")
	assert.Len(t, decoded["perspectives"], 1)
}

func TestAnalyzeFallsBackWhenProviderFails(t *testing.T) {
	stubDeps(t, &fakeCaller{err: &ai.ProviderError{Provider: "anthropic", Kind: ai.KindOverloaded, Message: "overloaded"}})

	out, errOut, err := execute([]string{"analyze", "-q", "-p", "systems_thinker"}, testStrategy)
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "> Automated synthesis was unavailable: fallback synthesis:")
	assert.Contains(t, out, "### Systems Thinker (0%)")
}

func TestAnalyzeRejectsShortStrategy(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	_, _, err := execute([]string{"analyze", "grow revenue"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestAnalyzeRejectsUnknownFormat(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	_, _, err := execute([]string{"analyze", "--format", "pdf", testStrategy}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestAnalyzeRejectsUnknownPerspective(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	_, _, err := execute([]string{"analyze", "-p", "astrologer", testStrategy}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownPerspective))
}

func TestPerspectivesListsCatalog(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	out, _, err := execute([]string{"perspectives", "--mental-models"}, "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "devils_advocate\tDevil's Advocate\t"))
	assert.Contains(t, out, "\ninversion\t")
}

func TestCheckReportsReply(t *testing.T) {
	stubDeps(t, &fakeCaller{})

	out, _, err := execute([]string{"check"}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Connection test successful")
}

func TestCheckReportsClassifiedFailure(t *testing.T) {
	stubDeps(t, &fakeCaller{err: &ai.ProviderError{Provider: "anthropic", Kind: ai.KindAuth, Message: "invalid x-api-key"}})

	out, _, err := execute([]string{"check"}, "")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Provider check failed (auth)")
}
