package worktree

import (
	"path/filepath"
	"strings"
)

// ComputePath renders a template string substituting {repo-name},
// {branch} (slash-sanitised to "-"), and {session-id} against the repo
// root, used to derive a worktree path from config.
func (m *Manager) ComputePath(branch, template, sessionID string) string {
	repoName := filepath.Base(m.RepoPath)
	sanitizedBranch := strings.ReplaceAll(branch, "/", "-")

	rendered := template
	rendered = strings.ReplaceAll(rendered, "{repo-name}", repoName)
	rendered = strings.ReplaceAll(rendered, "{branch}", sanitizedBranch)
	rendered = strings.ReplaceAll(rendered, "{session-id}", sessionID)

	if filepath.IsAbs(rendered) {
		return filepath.Clean(rendered)
	}
	return filepath.Clean(filepath.Join(m.RepoPath, rendered))
}
