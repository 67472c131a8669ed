// Package multiplex abstracts over a terminal multiplexer (tmux) that
// supports named background sessions. This replaces the PTY-direct
// approach the donor codebase uses for its agent terminal: the donor
// allocates a PTY in-process via creack/pty, but the core here never
// emulates a terminal in-process -- it shells out to tmux exclusively.
package multiplex

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SessionPrefix namespaces every multiplexer session this module creates.
const SessionPrefix = "aoe_"

// sanitizeAllowed reports whether r is kept as-is in a session name.
func sanitizeAllowed(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// SanitizeSessionName replaces any character outside [A-Za-z0-9_-] with
// "_" and truncates to 20 characters.
func SanitizeSessionName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if sanitizeAllowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 20 {
		s = s[:20]
	}
	return s
}

// GenerateName derives an agent multiplexer session name:
// aoe_<sanitized20(title)>_<first8(id)>.
func GenerateName(id, title string) string {
	id8 := id
	if len(id8) > 8 {
		id8 = id8[:8]
	}
	return SessionPrefix + SanitizeSessionName(title) + "_" + id8
}

// Session wraps a single tmux session by name.
type Session struct {
	Name string
}

// Size is an optional initial terminal size for Create.
type Size struct {
	Cols, Rows int
}

func (s *Session) buildCreateArgs(workdir string, command string, size *Size) []string {
	args := []string{"new-session", "-d", "-s", s.Name, "-c", workdir}
	if size != nil {
		args = append(args, "-x", strconv.Itoa(size.Cols), "-y", strconv.Itoa(size.Rows))
	}
	if command != "" {
		args = append(args, command)
	}
	return args
}

// Exists consults the process-wide cache before falling back to a
// subprocess probe.
func (s *Session) Exists() bool {
	if cached, ok := sessionExistsFromCache(s.Name); ok {
		return cached
	}
	return exec.Command("tmux", "has-session", "-t", s.Name).Run() == nil
}

// Create spawns a detached session. If command is non-empty it replaces
// the default shell; for agent sessions callers are expected to wrap the
// command with the Ctrl-Z-disabling shell wrapper (see WrapAgentCommand)
// before passing it here. Create is a no-op if the session already exists.
func (s *Session) Create(workdir, command string, size *Size) error {
	if s.Exists() {
		return nil
	}
	args := s.buildCreateArgs(workdir, command, size)
	out, err := exec.Command("tmux", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux new-session: %w: %s", err, strings.TrimSpace(string(out)))
	}
	RefreshSessionCache()
	return nil
}

// WrapAgentCommand wraps cmd so Ctrl-Z cannot suspend the agent process.
func WrapAgentCommand(cmd string) string {
	return fmt.Sprintf("bash -c 'stty susp undef; exec %s'", cmd)
}

// Kill walks the pane's process tree and sends kill signals before
// killing the tmux session, so any child agent process spawned under the
// shell is reaped too. "Session vanished" races are treated as success.
func (s *Session) Kill() error {
	if pid, err := s.PanePID(); err == nil && pid > 0 {
		killProcessTree(pid)
	}
	out, err := exec.Command("tmux", "kill-session", "-t", s.Name).CombinedOutput()
	if err != nil && !strings.Contains(string(out), "can't find session") {
		return fmt.Errorf("tmux kill-session: %w: %s", err, strings.TrimSpace(string(out)))
	}
	RefreshSessionCache()
	return nil
}

func (s *Session) Rename(newName string) error {
	out, err := exec.Command("tmux", "rename-session", "-t", s.Name, newName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux rename-session: %w: %s", err, strings.TrimSpace(string(out)))
	}
	s.Name = newName
	RefreshSessionCache()
	return nil
}

// Attach switches in-place when already inside tmux; otherwise attaches
// directly. This call intentionally blocks/yields the terminal to the
// user and is meant to be invoked from a CLI, not the daemon.
func (s *Session) Attach() error {
	if os.Getenv("TMUX") != "" {
		cmd := exec.Command("tmux", "switch-client", "-t", s.Name)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := cmd.Run(); err == nil {
			return nil
		}
	}
	cmd := exec.Command("tmux", "attach-session", "-t", s.Name)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}

// CapturePane returns the last `lines` lines of the pane as plain text.
// Non-existent sessions or failed captures return an empty string
// (non-fatal, mirroring the behaviour this is ported from).
func (s *Session) CapturePane(lines int) string {
	out, err := exec.Command("tmux", "capture-pane", "-t", s.Name, "-p", "-S", "-"+strconv.Itoa(lines)).Output()
	if err != nil {
		return ""
	}
	return string(out)
}

// PanePID returns the pid of the pane's top-level process.
func (s *Session) PanePID() (int, error) {
	out, err := exec.Command("tmux", "display-message", "-p", "-t", s.Name, "#{pane_pid}").Output()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

// ForegroundPID returns the pid of the process currently in the
// foreground of the pane (the child of pane_pid most likely to be the
// running agent), resolved via ps.
func (s *Session) ForegroundPID() (int, error) {
	panePID, err := s.PanePID()
	if err != nil {
		return 0, err
	}
	return foregroundPID(panePID)
}

// GetCurrentSessionName inspects the multiplexer environment to detect
// which session the caller is attached to, if any.
func GetCurrentSessionName() (string, bool) {
	out, err := exec.Command("tmux", "display-message", "-p", "#{session_name}").Output()
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(out))
	return name, name != ""
}

// IsAvailable reports whether the tmux binary can be invoked at all.
func IsAvailable() bool {
	return exec.Command("tmux", "-V").Run() == nil
}

// DetectTools probes PATH for supported agent binaries, used only to
// surface a non-blocking warning at instance creation time.
type AvailableTools struct {
	Claude   bool
	OpenCode bool
}

func DetectTools() AvailableTools {
	probe := func(bin string) bool {
		return exec.Command(bin, "--version").Run() == nil
	}
	return AvailableTools{
		Claude:   probe("claude"),
		OpenCode: probe("opencode"),
	}
}

func (t AvailableTools) AnyAvailable() bool { return t.Claude || t.OpenCode }

func (t AvailableTools) AvailableList() []string {
	var out []string
	if t.Claude {
		out = append(out, "claude")
	}
	if t.OpenCode {
		out = append(out, "opencode")
	}
	return out
}
