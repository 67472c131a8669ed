// Package status classifies an agent's observed state from a captured
// pane and an optional foreground pid. Classification is tool-indexed:
// each tool supplies substring/shape matchers over the last 50 lines of
// its pane, following the same keyed-by-tool-name, data-not-class-hierarchy
// design spec.md calls for elsewhere (runtime/multiplexer variants, agent
// tool table).
package status

import "strings"

// State is one of the three values the detector itself can produce. The
// orchestrator layers Starting/Stopped/Error/Deleting on top at a higher
// level.
type State string

const (
	Idle    State = "Idle"
	Running State = "Running"
	Waiting State = "Waiting"
)

// Classifier inspects a pane capture (already limited to the last N
// lines) and returns the detected state.
type Classifier func(capture string, foregroundPID int, havePID bool) State

// classifiers is the static, tool-keyed table described by §4.5/§9.
var classifiers = map[string]Classifier{
	"claude":   claudeClassifier,
	"opencode": genericPromptClassifier,
	"codex":    genericPromptClassifier,
	"gemini":   genericPromptClassifier,
	"vibe":     genericPromptClassifier,
}

// Detect runs the classifier registered for tool, falling back to the
// generic prompt classifier for unknown tools.
func Detect(tool, capture string, foregroundPID int, havePID bool) State {
	c, ok := classifiers[strings.ToLower(tool)]
	if !ok {
		c = genericPromptClassifier
	}
	return c(capture, foregroundPID, havePID)
}

// claudeClassifier matches Claude Code's own terminal chrome: the
// "(esc to interrupt)" footer means the agent is actively generating, and
// a "Do you want to ...?" confirmation block means it's waiting on the
// user. Anything else with no recent output is idle.
func claudeClassifier(capture string, _ int, _ bool) State {
	lower := strings.ToLower(capture)
	if strings.Contains(lower, "(esc to interrupt)") {
		return Running
	}
	if containsPrompt(capture) {
		return Waiting
	}
	if strings.TrimSpace(capture) == "" {
		return Idle
	}
	return Idle
}

// genericPromptClassifier is the fallback for tools without a bespoke
// classifier: any recognizable yes/no or numbered-choice prompt block is
// Waiting, any non-empty trailing content is Running, else Idle.
func genericPromptClassifier(capture string, _ int, _ bool) State {
	if containsPrompt(capture) {
		return Waiting
	}
	if strings.TrimSpace(capture) != "" {
		return Running
	}
	return Idle
}

// containsPrompt recognizes the common shapes of an interactive
// confirmation prompt across agent CLIs: a "Do you want to ...?" question,
// a "(y/n)" style suffix, or a numbered option list ("1.") shown together
// with a "❯" selection cursor.
func containsPrompt(capture string) bool {
	lower := strings.ToLower(capture)
	markers := []string{
		"do you want to",
		"(y/n)",
		"[y/n]",
		"yes, and don't ask again",
		"would you like to",
	}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return strings.Contains(capture, "❯") && strings.Contains(capture, "1.")
}
