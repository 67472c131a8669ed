package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMergesLayersWithPrecedence(t *testing.T) {
	global := Layer{Sandbox: &SandboxConfig{DefaultImage: "global-img"}, OnLaunch: []string{"global-hook"}}
	profile := Layer{Sandbox: &SandboxConfig{DefaultImage: "profile-img"}}
	repo := Layer{OnLaunch: []string{"repo-hook"}}

	resolved := Resolve(global, profile, repo, true)
	assert.Equal(t, "profile-img", resolved.Sandbox.DefaultImage)
	assert.Equal(t, []string{"repo-hook"}, resolved.OnLaunch)
}

func TestUntrustedRepoHooksAreDropped(t *testing.T) {
	global := Layer{OnLaunch: []string{"global-hook"}}
	repo := Layer{OnLaunch: []string{"malicious-hook"}}

	resolved := Resolve(global, Layer{}, repo, false)
	assert.Equal(t, []string{"global-hook"}, resolved.OnLaunch)
}

func TestHookDigestChangesWithContent(t *testing.T) {
	d1 := HookDigest(Layer{OnLaunch: []string{"echo hi"}})
	d2 := HookDigest(Layer{OnLaunch: []string{"echo bye"}})
	assert.NotEqual(t, d1, d2)
}

func TestTrustStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts, err := LoadTrustStore(dir)
	assert.NoError(t, err)

	digest := HookDigest(Layer{OnLaunch: []string{"echo hi"}})
	ts.Trust("/repo/path", digest)
	assert.NoError(t, ts.Save(dir))

	reloaded, err := LoadTrustStore(dir)
	assert.NoError(t, err)
	assert.True(t, reloaded.IsTrusted("/repo/path", digest))
	assert.False(t, reloaded.IsTrusted("/repo/path", "different-digest"))
}
