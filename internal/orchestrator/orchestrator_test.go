package orchestrator

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gandalfthegui/aoe/internal/session"
	"github.com/gandalfthegui/aoe/internal/storage"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return &Orchestrator{
		Store:      store,
		RuntimeFor: NewRuntimeFactory(),
	}
}

func TestCreateHostModeInstance(t *testing.T) {
	o := newTestOrchestrator(t)
	inst, err := o.Create(storage.DefaultProfile, CreateParams{
		Title: "Scribe",
		Path:  "/tmp/p",
		Tool:  "claude",
	})
	require.NoError(t, err)
	require.Len(t, inst.ID, 16)
	require.Equal(t, session.StatusIdle, inst.Status)
	require.Nil(t, inst.Sandbox)
	require.Nil(t, inst.Worktree)
}

func TestContainerNamingInvariant(t *testing.T) {
	o := newTestOrchestrator(t)
	inst, err := o.Create(storage.DefaultProfile, CreateParams{
		Title: "Sandboxed", Path: "/tmp/p", Tool: "claude", Sandbox: true, SandboxImage: "alpine:latest",
	})
	require.NoError(t, err)
	require.Equal(t, "aoe-sandbox-"+session.First8(inst.ID), inst.Sandbox.ContainerName)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))
	run("add", "README")
	run("commit", "-m", "init")
	return dir
}

func TestMountPlannerNonBareRepo(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := initRepo(t)

	host, containerBase, workdir := o.planMount(dir)
	require.Equal(t, dir, host)
	require.Equal(t, "/workspace/"+filepath.Base(dir), containerBase)
	require.Equal(t, containerBase, workdir)
}

func TestBareWorktreeMountPlanner(t *testing.T) {
	root := t.TempDir()
	barePath := filepath.Join(root, ".bare")

	run := func(dir string, args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	// git refuses to commit inside a bare repo, so the bare repo is cloned
	// from a regular one that already has a commit.
	run(root, "clone", "--bare", initRepo(t), barePath)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: ./.bare\n"), 0o644))

	mainPath := filepath.Join(root, "main")
	cmd := exec.Command("git", "rev-parse", "--verify", "HEAD")
	cmd.Dir = barePath
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	run(barePath, "worktree", "add", mainPath, "HEAD")

	o := newTestOrchestrator(t)
	host, containerBase, workdir := o.planMount(mainPath)
	require.Equal(t, filepath.Base(root), filepath.Base(host))
	require.Equal(t, "/workspace/"+filepath.Base(root), containerBase)
	require.Equal(t, filepath.Join(containerBase, "main"), workdir)
}

func TestDeleteIdempotentWhenNothingExists(t *testing.T) {
	o := newTestOrchestrator(t)
	inst := &session.Instance{ID: session.NewID(), Title: "x"}
	err := o.Delete(inst, DeleteOptions{}, nil)
	require.NoError(t, err)
}

func TestMatchSessionNameByID8Suffix(t *testing.T) {
	instances := []*session.Instance{
		{ID: "aaaaaaaa11111111", Title: "Scribe"},
		{ID: "bbbbbbbb22222222", Title: "Herald"},
	}
	got := matchSessionName("aoe_scribe_aaaaaaaa", instances)
	require.NotNil(t, got)
	require.Equal(t, "aaaaaaaa11111111", got.ID)

	got = matchSessionName("aoe_herald_bbbbbbbb", instances)
	require.NotNil(t, got)
	require.Equal(t, "bbbbbbbb22222222", got.ID)
}

func TestMatchSessionNameNoMatch(t *testing.T) {
	instances := []*session.Instance{{ID: "aaaaaaaa11111111", Title: "Scribe"}}
	require.Nil(t, matchSessionName("aoe_scribe_deadbeef", instances))
	require.Nil(t, matchSessionName("not-an-aoe-session", instances))
}
