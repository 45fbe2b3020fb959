package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "redteam.analysis.completed", Topic("redteam", TopicAnalysisCompleted))
	assert.Equal(t, "synthesis.completed", Topic("", TopicSynthesisCompleted))
}
