package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"redteam/pkg/errors"
)

func TestScreenStrategy(t *testing.T) {
	long := strings.Repeat("a", 60)

	tests := []struct {
		name    string
		text    string
		max     int
		wantErr bool
	}{
		{"valid", testStrategy, 10000, false},
		{"blank", "   \n\t", 10000, true},
		{"too short", "Cut prices by ten percent.", 10000, true},
		{"short after trimming", "   " + strings.Repeat("b", 40) + "    ", 10000, true},
		{"too long", long, 55, true},
		{"no upper bound", strings.Repeat("word ", 5000), 0, false},
		{"password", testStrategy + " The admin password is hunter2.", 10000, true},
		{"api key", testStrategy + " Use API key abc123 for the pilot.", 10000, true},
		{"api_key", testStrategy + " api_key=abc123", 10000, true},
		{"email", testStrategy + " Contact jane.doe@example.com for details.", 10000, true},
		{"tokenomics is not token", testStrategy + " Tokenomics stay unchanged.", 10000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ScreenStrategy(tt.text, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidInput))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScreenStrategyCountsCharacters(t *testing.T) {
	// 50 multi-byte runes pass the minimum
	assert.NoError(t, ScreenStrategy(strings.Repeat("é", 50), 0))
	assert.Error(t, ScreenStrategy(strings.Repeat("é", 49), 0))
}
