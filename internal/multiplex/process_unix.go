//go:build !windows

package multiplex

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// killProcessTree sends SIGTERM to every descendant of pid (found via ps's
// ppid column) before the caller kills the tmux session itself, so agent
// child processes spawned under the pane's shell are reaped rather than
// orphaned.
func killProcessTree(pid int) {
	children := childPIDs(pid)
	for _, c := range children {
		killProcessTree(c)
	}
	_ = unix.Kill(pid, syscall.SIGTERM)
}

func childPIDs(pid int) []int {
	out, err := exec.Command("ps", "-o", "pid=", "--ppid", strconv.Itoa(pid)).Output()
	if err != nil {
		return nil
	}
	var result []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n, err := strconv.Atoi(line); err == nil {
			result = append(result, n)
		}
	}
	return result
}

// foregroundPID finds the deepest single child of panePID, which in a
// shell pane is typically the foreground process the shell is waiting on.
func foregroundPID(panePID int) (int, error) {
	current := panePID
	for {
		children := childPIDs(current)
		if len(children) == 0 {
			return current, nil
		}
		current = children[0]
	}
}
