// Package storage persists per-profile (instances, group_tree) documents
// under the application directory, writing via temp-file + rename so
// readers never observe a half-written file -- the same discipline the
// donor applies per-instance in internal/daemon/persist.go, generalized
// here to whole-profile documents.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gandalfthegui/aoe/internal/session"
)

const DefaultProfile = "default"

// Store is a disk-backed collection of profiles rooted at a single app
// directory (e.g. $XDG_CONFIG_HOME/aoe).
type Store struct {
	mu      sync.Mutex
	RootDir string
}

func New(rootDir string) (*Store, error) {
	if err := os.MkdirAll(profileDir(rootDir, DefaultProfile), 0o755); err != nil {
		return nil, err
	}
	return &Store{RootDir: rootDir}, nil
}

func profileDir(root, profile string) string {
	return filepath.Join(root, "profiles", profile)
}

func (s *Store) ProfileDir(profile string) string {
	return profileDir(s.RootDir, profile)
}

// Profiles lists every profile directory under the app root; "default"
// always exists.
func (s *Store) Profiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.RootDir, "profiles"))
	if err != nil {
		return []string{DefaultProfile}, nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		names = []string{DefaultProfile}
	}
	return names, nil
}

type document struct {
	Instances []*session.Instance  `yaml:"instances"`
	GroupTree *session.GroupTree   `yaml:"group_tree"`
}

// Load reads both persisted documents for profile, returning empty
// defaults if neither exists yet.
func (s *Store) Load(profile string) ([]*session.Instance, *session.GroupTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(profileDir(s.RootDir, profile), "state.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, session.NewGroupTree(), nil
	}
	if err != nil {
		return nil, nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse state for profile %s: %w", profile, err)
	}
	if doc.GroupTree == nil {
		doc.GroupTree = session.NewGroupTree()
	}
	for _, inst := range doc.Instances {
		inst.RefreshSearchCache()
	}
	doc.GroupTree.Reconcile(doc.Instances)
	return doc.Instances, doc.GroupTree, nil
}

// Save writes both documents atomically (write-temp + rename), rebuilding
// the group tree to reconcile it with instance group_path values before
// persisting, per §4.6.
func (s *Store) Save(profile string, instances []*session.Instance, tree *session.GroupTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tree == nil {
		tree = session.NewGroupTree()
	}
	tree.Reconcile(instances)

	dir := profileDir(s.RootDir, profile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc := document{Instances: instances, GroupTree: tree}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "state.yaml")
	return atomicWrite(path, data)
}

// MoveInstance removes an instance from the source profile and inserts it
// into the target profile, validating the target exists on disk (or
// is the default profile, which always exists).
func (s *Store) MoveInstance(inst *session.Instance, fromProfile, toProfile string) error {
	profiles, err := s.Profiles()
	if err != nil {
		return err
	}
	found := toProfile == DefaultProfile
	for _, p := range profiles {
		if p == toProfile {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("profile %s does not exist", toProfile)
	}

	fromInstances, fromTree, err := s.Load(fromProfile)
	if err != nil {
		return err
	}
	var remaining []*session.Instance
	for _, i := range fromInstances {
		if i.ID != inst.ID {
			remaining = append(remaining, i)
		}
	}
	if err := s.Save(fromProfile, remaining, fromTree); err != nil {
		return err
	}

	toInstances, toTree, err := s.Load(toProfile)
	if err != nil {
		return err
	}
	toInstances = append(toInstances, inst)
	toTree.Ensure(inst.GroupPath)
	return s.Save(toProfile, toInstances, toTree)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
