// Package config resolves the three-layer (global, profile, repo-local)
// configuration chain described in §4.9, including the hook-trust digest
// model that gates whether a repo-local config's hooks actually execute.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Layer is one typed document with optional fields; a higher layer only
// overrides the fields it sets.
type Layer struct {
	Sandbox *SandboxConfig `yaml:"sandbox,omitempty"`
	OnLaunch []string       `yaml:"on_launch,omitempty"`
	Check    []string       `yaml:"check,omitempty"`
	Finish   []string       `yaml:"finish,omitempty"`
}

type SandboxConfig struct {
	ContainerRuntime string   `yaml:"container_runtime,omitempty"`
	DefaultImage     string   `yaml:"default_image,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`
	EnvironmentValues []string `yaml:"environment_values,omitempty"`
}

// Resolved is the merged effective configuration for one instance start.
type Resolved struct {
	Sandbox  SandboxConfig
	OnLaunch []string
	Check    []string
	Finish   []string
}

// merge overlays higher on top of base, replacing only fields that are set.
func merge(base, higher Layer) Layer {
	out := base
	if higher.Sandbox != nil {
		if out.Sandbox == nil {
			out.Sandbox = &SandboxConfig{}
		}
		s := *out.Sandbox
		if higher.Sandbox.ContainerRuntime != "" {
			s.ContainerRuntime = higher.Sandbox.ContainerRuntime
		}
		if higher.Sandbox.DefaultImage != "" {
			s.DefaultImage = higher.Sandbox.DefaultImage
		}
		if higher.Sandbox.Environment != nil {
			s.Environment = higher.Sandbox.Environment
		}
		if higher.Sandbox.EnvironmentValues != nil {
			s.EnvironmentValues = higher.Sandbox.EnvironmentValues
		}
		out.Sandbox = &s
	}
	if higher.OnLaunch != nil {
		out.OnLaunch = higher.OnLaunch
	}
	if higher.Check != nil {
		out.Check = higher.Check
	}
	if higher.Finish != nil {
		out.Finish = higher.Finish
	}
	return out
}

func loadLayer(path string) (Layer, error) {
	var l Layer
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return l, err
	}
	err = yaml.Unmarshal(data, &l)
	return l, err
}

// TrustStore tracks which repo paths the user trusts, keyed by a digest of
// that repo's hook block so edits invalidate trust.
type TrustStore struct {
	Trusted map[string]string `yaml:"trusted"` // repoPath -> digest
}

func LoadTrustStore(appDir string) (*TrustStore, error) {
	ts := &TrustStore{Trusted: map[string]string{}}
	data, err := os.ReadFile(filepath.Join(appDir, "trust.yaml"))
	if os.IsNotExist(err) {
		return ts, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, ts); err != nil {
		return nil, err
	}
	if ts.Trusted == nil {
		ts.Trusted = map[string]string{}
	}
	return ts, nil
}

func (t *TrustStore) Save(appDir string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	tmp := filepath.Join(appDir, "trust.yaml.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(appDir, "trust.yaml"))
}

// HookDigest computes a stable digest of a hook block (on_launch + check +
// finish commands) for the trust model.
func HookDigest(l Layer) string {
	h := sha256.New()
	for _, s := range l.OnLaunch {
		h.Write([]byte("launch:" + s + "\n"))
	}
	for _, s := range l.Check {
		h.Write([]byte("check:" + s + "\n"))
	}
	for _, s := range l.Finish {
		h.Write([]byte("finish:" + s + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (t *TrustStore) IsTrusted(repoPath string, digest string) bool {
	got, ok := t.Trusted[repoPath]
	return ok && got == digest
}

func (t *TrustStore) Trust(repoPath, digest string) {
	t.Trusted[repoPath] = digest
}

// Resolve merges global -> profile -> repo-local layers. Repo-local hooks
// (on_launch/check/finish) are dropped unless trusted is true -- the
// caller determines trust via TrustStore.IsTrusted against repoLayer's
// own HookDigest before calling Resolve with includeRepoHooks.
func Resolve(global, profile, repo Layer, includeRepoHooks bool) Resolved {
	merged := merge(merge(global, profile), stripHooksIfUntrusted(repo, includeRepoHooks))

	r := Resolved{OnLaunch: merged.OnLaunch, Check: merged.Check, Finish: merged.Finish}
	if merged.Sandbox != nil {
		r.Sandbox = *merged.Sandbox
	}
	return r
}

func stripHooksIfUntrusted(repo Layer, trusted bool) Layer {
	if trusted {
		return repo
	}
	repo.OnLaunch = nil
	repo.Check = nil
	repo.Finish = nil
	return repo
}

// LoadChain loads the three documents from their conventional locations:
// <appDir>/config.yaml (global), <appDir>/profiles/<profile>/config.yaml,
// and <repoPath>/aoe.yaml (repo-local).
func LoadChain(appDir, profile, repoPath string) (global, profLayer, repoLayer Layer, err error) {
	global, err = loadLayer(filepath.Join(appDir, "config.yaml"))
	if err != nil {
		return
	}
	profLayer, err = loadLayer(filepath.Join(appDir, "profiles", profile, "config.yaml"))
	if err != nil {
		return
	}
	repoLayer, err = loadLayer(filepath.Join(repoPath, "aoe.yaml"))
	return
}

// ResolveChain loads the three-layer chain for repoPath and resolves it,
// consulting the on-disk trust store to decide whether repo-local hooks
// are included. This is the entry point daemon operations use; Resolve
// itself stays usable directly by tests that don't want trust-store I/O.
func ResolveChain(appDir, profile, repoPath string) (Resolved, error) {
	global, profLayer, repoLayer, err := LoadChain(appDir, profile, repoPath)
	if err != nil {
		return Resolved{}, err
	}
	trust, err := LoadTrustStore(appDir)
	if err != nil {
		return Resolved{}, err
	}
	trusted := trust.IsTrusted(repoPath, HookDigest(repoLayer))
	return Resolve(global, profLayer, repoLayer, trusted), nil
}
