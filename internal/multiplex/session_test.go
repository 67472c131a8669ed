package multiplex

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSessionName(t *testing.T) {
	assert.Equal(t, "My_Cool_Session", SanitizeSessionName("My Cool/Session"))
	assert.Equal(t, 20, len(SanitizeSessionName(
		"a-very-long-title-that-goes-on-and-on-and-on")))
}

func TestGenerateName(t *testing.T) {
	name := GenerateName("abcdef0123456789", "Scribe")
	assert.Regexp(t, regexp.MustCompile(`^aoe_[A-Za-z0-9_-]{0,20}_[0-9a-f]{8}$`), name)
	assert.Equal(t, "aoe_Scribe_abcdef01", name)
}

func TestBuildCreateArgsWithoutSize(t *testing.T) {
	s := &Session{Name: "aoe_test_abcd1234"}
	args := s.buildCreateArgs("/work", "", nil)
	assert.Equal(t, []string{"new-session", "-d", "-s", "aoe_test_abcd1234", "-c", "/work"}, args)
}

func TestBuildCreateArgsWithSize(t *testing.T) {
	s := &Session{Name: "n"}
	args := s.buildCreateArgs("/work", "", &Size{Cols: 80, Rows: 24})
	assert.Equal(t, []string{"new-session", "-d", "-s", "n", "-c", "/work", "-x", "80", "-y", "24"}, args)
}

func TestBuildCreateArgsWithCommand(t *testing.T) {
	s := &Session{Name: "n"}
	args := s.buildCreateArgs("/work", "claude", nil)
	assert.Equal(t, []string{"new-session", "-d", "-s", "n", "-c", "/work", "claude"}, args)
}

func TestBuildCreateArgsWithSizeAndCommand(t *testing.T) {
	s := &Session{Name: "n"}
	args := s.buildCreateArgs("/work", "claude", &Size{Cols: 100, Rows: 40})
	assert.Equal(t, []string{"new-session", "-d", "-s", "n", "-c", "/work", "-x", "100", "-y", "40", "claude"}, args)
}

func TestWrapAgentCommandDisablesCtrlZ(t *testing.T) {
	assert.Equal(t, `bash -c 'stty susp undef; exec claude'`, WrapAgentCommand("claude"))
}
