package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaudeRunningIndicator(t *testing.T) {
	capture := "Thinking about the problem...\n(esc to interrupt)\n"
	assert.Equal(t, Running, Detect("claude", capture, 0, false))
}

func TestClaudeWaitingOnConfirmation(t *testing.T) {
	capture := "Do you want to make this edit?\n1. Yes\n2. No\n"
	assert.Equal(t, Waiting, Detect("claude", capture, 0, false))
}

func TestClaudeIdleWhenBlank(t *testing.T) {
	assert.Equal(t, Idle, Detect("claude", "   \n  \n", 0, false))
}

func TestGenericClassifierUnknownTool(t *testing.T) {
	assert.Equal(t, Running, Detect("mystery-agent", "doing some work\n", 0, false))
	assert.Equal(t, Idle, Detect("mystery-agent", "", 0, false))
	assert.Equal(t, Waiting, Detect("mystery-agent", "Would you like to proceed? (y/n)", 0, false))
}
