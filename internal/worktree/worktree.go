// Package worktree operates on git working trees and bare repositories
// with linked worktrees. Add/remove/list shell out to the git binary to
// match upstream semantics exactly -- go-git has no linked-worktree API
// to build on (see DESIGN.md's STDLIB JUSTIFICATION under
// internal/worktree); the remaining read-only checks walk `.git`
// files/directories the same way `git rev-parse` would.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gandalfthegui/aoe/internal/errs"
)

// Entry describes one worktree returned by ListWorktrees.
type Entry struct {
	Path       string
	Branch     string
	IsDetached bool
}

// Manager operates relative to a repository root resolved by FindMainRepo.
type Manager struct {
	RepoPath string
}

func New(repoPath string) (*Manager, error) {
	if !IsGitRepo(repoPath) {
		return nil, fmt.Errorf("%s: %w", repoPath, errs.ErrValidation)
	}
	return &Manager{RepoPath: repoPath}, nil
}

// gitDirFor resolves the .git entry (file or directory) reachable from
// path, walking upward the way `git rev-parse --git-dir` would.
func gitDirFor(path string) (string, bool) {
	dir := path
	for {
		candidate := filepath.Join(dir, ".git")
		if info, err := os.Stat(candidate); err == nil {
			if info.IsDir() {
				return candidate, true
			}
			// .git file: read "gitdir: <path>" and resolve it.
			content, err := os.ReadFile(candidate)
			if err != nil {
				return "", false
			}
			for _, line := range strings.Split(string(content), "\n") {
				if strings.HasPrefix(line, "gitdir:") {
					target := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
					if !filepath.IsAbs(target) {
						target = filepath.Join(dir, target)
					}
					return filepath.Clean(target), true
				}
			}
			return "", false
		}
		// A bare repo itself (foo.git) has no .git entry but HEAD directly.
		if info, err := os.Stat(filepath.Join(dir, "HEAD")); err == nil && !info.IsDir() {
			if _, err := os.Stat(filepath.Join(dir, "refs")); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// IsGitRepo is true if repo discovery succeeds at or above path.
func IsGitRepo(path string) bool {
	_, ok := gitDirFor(path)
	return ok
}

// IsBareRepo discovers and returns bareness. For worktrees of a bare
// repository, callers should resolve FindMainRepo first -- checking
// bareness directly from inside a linked worktree reports false, since the
// worktree itself has a working directory (this mirrors the documented
// behaviour of the original implementation this is ported from).
func IsBareRepo(path string) bool {
	gitdir, ok := gitDirFor(path)
	if !ok {
		return false
	}
	// A gitdir ending in "worktrees/<name>" belongs to a linked worktree,
	// not the bare repo itself.
	if filepath.Base(filepath.Dir(gitdir)) == "worktrees" {
		return false
	}
	// Bare repos have HEAD/refs/objects directly inside gitdir and no
	// sibling working tree (no ".." entry contains a checked-out index).
	if _, err := os.Stat(filepath.Join(gitdir, "index")); err == nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(gitdir, "HEAD")); err != nil {
		return false
	}
	return true
}

// findBareRepoRootFromGitdir returns the parent of the bare repo directory
// when gitdir sits under a worktrees/ ancestor (e.g.
// /project/.bare/worktrees/main -> /project), or "" otherwise.
func findBareRepoRootFromGitdir(gitdir string) string {
	current := gitdir
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		if filepath.Base(current) == "worktrees" {
			return filepath.Dir(parent)
		}
		current = parent
	}
}

// FindMainRepo resolves the user-visible repository root, handling linked
// worktrees of bare repos, regular repos, and direct bare repos.
func FindMainRepo(path string) (string, error) {
	gitdir, ok := gitDirFor(path)
	if !ok {
		return "", fmt.Errorf("%s: %w", path, errs.ErrValidation)
	}

	if root := findBareRepoRootFromGitdir(gitdir); root != "" {
		return filepath.Clean(root), nil
	}

	// Regular repo: gitdir is "<workdir>/.git", so workdir is its parent.
	if filepath.Base(gitdir) == ".git" {
		return filepath.Dir(gitdir), nil
	}

	// Direct bare repo (foo.git) or a ".git file -> .bare" setup: return
	// the parent of the git directory.
	parent := filepath.Dir(gitdir)
	if parent == "" {
		return "", errs.ErrValidation
	}
	return filepath.Clean(parent), nil
}

// CreateWorktree rejects existing targets, prunes stale registrations,
// creates the branch at HEAD when requested (otherwise requires it to
// already exist locally or as a remote tracking branch), runs
// `git worktree add`, then rewrites the resulting `.git` pointer file from
// an absolute to a relative path so the worktree still resolves when the
// repo is bind-mounted at a different location.
func (m *Manager) CreateWorktree(branch, path string, createBranch bool) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, errs.ErrWorktreeAlreadyExists)
	}

	m.run("worktree", "prune")

	if createBranch {
		if out, err := m.runErr("branch", branch, "HEAD"); err != nil {
			return fmt.Errorf("create branch %s: %w: %s", branch, err, out)
		}
	} else if !m.branchExists(branch) {
		return fmt.Errorf("%s: %w", branch, errs.ErrBranchNotFound)
	}

	if out, err := m.runErr("worktree", "add", path, branch); err != nil {
		return fmt.Errorf("worktree add: %w: %s", err, out)
	}

	return convertGitFileToRelative(path)
}

// branchExists matches a local branch named exactly `branch`, or a remote
// tracking branch whose short name ends in "/<branch>" or equals branch.
func (m *Manager) branchExists(branch string) bool {
	if _, err := m.runErr("show-ref", "--verify", "--quiet", "refs/heads/"+branch); err == nil {
		return true
	}
	out, err := m.runErr("branch", "-r", "--format=%(refname:short)")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == branch || strings.HasSuffix(line, "/"+branch) {
			return true
		}
	}
	return false
}

// convertGitFileToRelative rewrites a worktree's `.git` file from an
// absolute gitdir path to a relative one.
func convertGitFileToRelative(worktreePath string) error {
	gitFile := filepath.Join(worktreePath, ".git")
	info, err := os.Stat(gitFile)
	if err != nil || info.IsDir() {
		return nil // not a linked worktree, or already a directory
	}

	content, err := os.ReadFile(gitFile)
	if err != nil {
		return err
	}
	var gitdirLine string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(line, "gitdir:") {
			gitdirLine = line
			break
		}
	}
	if gitdirLine == "" {
		return nil
	}
	absPath := strings.TrimSpace(strings.TrimPrefix(gitdirLine, "gitdir:"))
	if !filepath.IsAbs(absPath) {
		return nil // already relative
	}

	worktreeCanon, err := filepath.EvalSymlinks(worktreePath)
	if err != nil {
		return err
	}
	gitdirCanon, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return err
	}

	rel, err := diffPaths(gitdirCanon, worktreeCanon)
	if err != nil {
		return nil
	}
	return os.WriteFile(gitFile, []byte("gitdir: "+rel+"\n"), 0o644)
}

// diffPaths computes a relative path from base to target, prefixing ".."
// for each remaining base component after the common prefix is skipped.
func diffPaths(target, base string) (string, error) {
	targetParts := strings.Split(filepath.Clean(target), string(filepath.Separator))
	baseParts := strings.Split(filepath.Clean(base), string(filepath.Separator))

	i := 0
	for i < len(targetParts) && i < len(baseParts) && targetParts[i] == baseParts[i] {
		i++
	}

	up := len(baseParts) - i
	var result []string
	for j := 0; j < up; j++ {
		result = append(result, "..")
	}
	result = append(result, targetParts[i:]...)
	return filepath.Join(result...), nil
}

// ListWorktrees includes the main worktree entry only for non-bare repos;
// linked worktrees are listed regardless.
func (m *Manager) ListWorktrees() ([]Entry, error) {
	var entries []Entry

	if !IsBareRepo(m.RepoPath) {
		branch, _ := CurrentBranch(m.RepoPath)
		entries = append(entries, Entry{Path: m.RepoPath, Branch: branch, IsDetached: branch == ""})
	}

	out, err := m.runErr("worktree", "list", "--porcelain")
	if err != nil {
		return entries, nil
	}
	var cur Entry
	flush := func() {
		if cur.Path != "" && cur.Path != m.RepoPath {
			entries = append(entries, cur)
		}
		cur = Entry{}
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "detached":
			cur.IsDetached = true
		}
	}
	flush()
	return entries, nil
}

// RemoveWorktree rejects missing paths and passes --force iff requested.
func (m *Manager) RemoveWorktree(path string, force bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s: %w", path, errs.ErrWorktreeNotFound)
	}
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if out, err := m.runErr(args...); err != nil {
		return fmt.Errorf("worktree remove: %w: %s", err, out)
	}
	return nil
}

// DeleteBranch tries -d first; if git reports the branch isn't fully
// merged, retries with -D.
func (m *Manager) DeleteBranch(branch string) error {
	out, err := m.runErr("branch", "-d", branch)
	if err == nil {
		return nil
	}
	if strings.Contains(out, "not fully merged") {
		if _, ferr := m.runErr("branch", "-D", branch); ferr == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", branch, errs.ErrBranchNotFound)
}

// CurrentBranch returns the short branch name at path, or an error when
// detached.
func CurrentBranch(path string) (string, error) {
	out, err := exec.Command("git", "-C", path, "symbolic-ref", "--short", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (m *Manager) run(args ...string) {
	_ = exec.Command("git", append([]string{"-C", m.RepoPath}, args...)...).Run()
}

func (m *Manager) runErr(args ...string) (string, error) {
	out, err := exec.Command("git", append([]string{"-C", m.RepoPath}, args...)...).CombinedOutput()
	return string(out), err
}
