package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/pkg/errors"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{Strategy: "Launch a $10/month subscription app", Perspectives: []string{"devils_advocate"}}
	require.NoError(t, valid.Validate())

	tests := map[string]Request{
		"blank strategy":    {Strategy: "   ", Perspectives: []string{"devils_advocate"}},
		"no perspectives":   {Strategy: "x"},
		"blank perspective": {Strategy: "x", Perspectives: []string{"devils_advocate", " "}},
	}
	for name, req := range tests {
		err := req.Validate()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), name)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 1.0, ClampConfidence(1.7, 0.5))
	assert.Equal(t, 0.0, ClampConfidence(-0.2, 0.5))
	assert.Equal(t, 0.73, ClampConfidence(0.73, 0.5))
	assert.Equal(t, 0.5, ClampConfidence(math.NaN(), 0.5))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelHigh, ParseLevel(" high "))
	assert.Equal(t, LevelLow, ParseLevel("LOW"))
	assert.Equal(t, LevelMedium, ParseLevel("medium"))
	assert.Equal(t, LevelMedium, ParseLevel("extreme"))
	assert.True(t, LevelLow.Valid())
	assert.False(t, Level("low").Valid())
}

func TestReportNormalize(t *testing.T) {
	r := Report{
		ConfidenceAssessment:     3,
		CriticalInsights:         []string{" a ", "", "b"},
		ConsensusLevel:           "high",
		ImplementationDifficulty: "unknown",
	}
	r.Normalize()

	assert.Equal(t, 1.0, r.ConfidenceAssessment)
	assert.Equal(t, []string{"a", "b"}, r.CriticalInsights)
	assert.NotNil(t, r.RiskMitigation)
	assert.Empty(t, r.RiskMitigation)
	assert.Equal(t, LevelHigh, r.ConsensusLevel)
	assert.Equal(t, LevelMedium, r.ImplementationDifficulty)
	assert.False(t, r.IsFallback())
}
