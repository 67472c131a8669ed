package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial")
	return dir
}

func TestIsGitRepo(t *testing.T) {
	dir := initRepo(t)
	require.True(t, IsGitRepo(dir))
	require.False(t, IsGitRepo(t.TempDir()))
}

func TestFindMainRepoRegularRepo(t *testing.T) {
	dir := initRepo(t)
	root, err := FindMainRepo(dir)
	require.NoError(t, err)
	require.Equal(t, dir, root)
}

func TestCreateAndRemoveWorktree(t *testing.T) {
	dir := initRepo(t)
	mgr, err := New(dir)
	require.NoError(t, err)

	wtPath := filepath.Join(t.TempDir(), "feature-wt")
	require.NoError(t, mgr.CreateWorktree("feature", wtPath, true))
	require.DirExists(t, wtPath)
	require.FileExists(t, filepath.Join(wtPath, ".git"))

	require.NoError(t, mgr.RemoveWorktree(wtPath, false))
	require.NoDirExists(t, wtPath)
}

func TestCreateWorktreeRejectsExistingPath(t *testing.T) {
	dir := initRepo(t)
	mgr, err := New(dir)
	require.NoError(t, err)

	existing := filepath.Join(t.TempDir(), "already-here")
	require.NoError(t, os.MkdirAll(existing, 0o755))

	err = mgr.CreateWorktree("whatever", existing, true)
	require.Error(t, err)
}

func TestDeleteBranchFailsForNonexistent(t *testing.T) {
	dir := initRepo(t)
	mgr, err := New(dir)
	require.NoError(t, err)

	err = mgr.DeleteBranch("nonexistent")
	require.Error(t, err)
}

func TestComputePathSubstitutesTemplateVars(t *testing.T) {
	dir := initRepo(t)
	mgr, err := New(dir)
	require.NoError(t, err)

	path := mgr.ComputePath("feat/test", "../{repo-name}-worktrees/{branch}", "abc123")
	require.Contains(t, path, "feat-test")
	require.Contains(t, path, "-worktrees")
}
