package credsync_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gandalfthegui/aoe/internal/credsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncWritesSeedFilesOnce(t *testing.T) {
	host := t.TempDir()
	sandbox := filepath.Join(t.TempDir(), "sandbox")

	rec := credsync.AgentRecord{
		SeedFiles: []credsync.SeedFile{{Name: "settings.json", Content: []byte("{}\n")}},
	}
	require.NoError(t, credsync.Sync(rec, host, sandbox, nil))

	path := filepath.Join(sandbox, "settings.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	// A second sync must not clobber a file a container has since modified.
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0o644))
	require.NoError(t, credsync.Sync(rec, host, sandbox, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
}

func TestSyncCopiesHostFilesUntilPriorDataExists(t *testing.T) {
	host := t.TempDir()
	sandbox := filepath.Join(t.TempDir(), "sandbox")
	require.NoError(t, os.WriteFile(filepath.Join(host, "auth.json"), []byte("host-token"), 0o644))

	rec := credsync.AgentRecord{PreserveFiles: []string{"auth.json"}}
	require.NoError(t, credsync.Sync(rec, host, sandbox, nil))
	data, err := os.ReadFile(filepath.Join(sandbox, "auth.json"))
	require.NoError(t, err)
	assert.Equal(t, "host-token", string(data))

	// Once projects/ exists (container has run and accumulated state), a
	// later sync must leave host-side files alone even if they changed.
	require.NoError(t, os.MkdirAll(filepath.Join(sandbox, "projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host, "auth.json"), []byte("rotated-token"), 0o644))
	require.NoError(t, credsync.Sync(rec, host, sandbox, nil))
	data, err = os.ReadFile(filepath.Join(sandbox, "auth.json"))
	require.NoError(t, err)
	assert.Equal(t, "host-token", string(data))
}

func TestSyncSkipsEntriesAndCopiesDirs(t *testing.T) {
	host := t.TempDir()
	sandbox := filepath.Join(t.TempDir(), "sandbox")
	require.NoError(t, os.MkdirAll(filepath.Join(host, "shell-snapshots"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host, "shell-snapshots", "s.sh"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(host, "plugins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(host, "plugins", "p.json"), []byte("{}"), 0o644))

	rec := credsync.AgentRecord{
		SkipEntries: []string{"shell-snapshots"},
		CopyDirs:    []string{"plugins"},
	}
	require.NoError(t, credsync.Sync(rec, host, sandbox, nil))

	_, err := os.Stat(filepath.Join(sandbox, "shell-snapshots"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(sandbox, "plugins", "p.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSyncNilWarnerDoesNotPanic(t *testing.T) {
	host := t.TempDir()
	sandbox := filepath.Join(t.TempDir(), "sandbox")
	rec := credsync.AgentRecord{
		KeychainCredential: &credsync.KeychainCredential{Service: "nonexistent-service", DestFile: ".credentials.json"},
	}
	assert.NoError(t, credsync.Sync(rec, host, sandbox, nil))
}
