package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gandalfthegui/aoe/internal/session"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	inst := &session.Instance{
		ID:        "abcdef0123456789",
		Title:     "Scribe",
		Tool:      "claude",
		Status:    session.StatusIdle,
		CreatedAt: time.Now(),
	}
	tree := session.NewGroupTree()
	tree.SetCollapsed("backend", true)

	require.NoError(t, store.Save(DefaultProfile, []*session.Instance{inst}, tree))

	loadedInstances, loadedTree, err := store.Load(DefaultProfile)
	require.NoError(t, err)
	require.Len(t, loadedInstances, 1)
	require.Equal(t, "Scribe", loadedInstances[0].Title)
	require.True(t, loadedTree.Groups["backend"].Collapsed)
}

func TestGroupCollapsedStatePersistsAcrossReload(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	tree := session.NewGroupTree()
	tree.SetCollapsed("g1", true)
	require.NoError(t, store.Save(DefaultProfile, nil, tree))

	_, reloaded, err := store.Load(DefaultProfile)
	require.NoError(t, err)
	require.True(t, reloaded.Groups["g1"].Collapsed)
}

func TestDefaultProfileAlwaysListed(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	profiles, err := store.Profiles()
	require.NoError(t, err)
	require.Contains(t, profiles, DefaultProfile)
}
