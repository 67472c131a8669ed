package orchestrator

import "os/exec"

// runShell runs a host hook command with cwd = project path (§4.9 hook
// execution surface).
func runShell(command, dir string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	return cmd.Run()
}
