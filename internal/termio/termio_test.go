package termio

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRunInteractiveExitStatus exercises the plumbing against a trivial
// command; term.MakeRaw fails quietly in a non-tty test environment (stdin
// isn't a terminal under `go test`), which RunInteractive already tolerates.
func TestRunInteractiveExitStatus(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 3")
	err := RunInteractive(cmd)
	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	require.Equal(t, 3, exitErr.ExitCode())
}
