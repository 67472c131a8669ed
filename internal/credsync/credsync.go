// Package credsync mirrors host-side agent credentials into a per-agent
// shared sandbox directory bind-mounted read-write into every container
// for that agent, with a write-once / preserve-on-restart discipline so
// container-accumulated state is never clobbered by a later sync.
package credsync

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// SeedFile is written into the sandbox directory if missing (write-once).
type SeedFile struct {
	Name    string
	Content []byte
}

// KeychainCredential names a host keychain service entry to extract into
// dest file inside the sandbox directory.
type KeychainCredential struct {
	Service  string
	DestFile string
}

// AgentRecord is the declarative description of one supported agent's
// credential-sync rules.
type AgentRecord struct {
	HostRel            string // path relative to $HOME on the host, e.g. ".claude"
	ContainerSuffix    string // mount suffix inside the container, e.g. ".claude"
	SkipEntries        []string
	SeedFiles          []SeedFile
	CopyDirs           []string
	KeychainCredential *KeychainCredential
	HomeSeedFiles      []SeedFile
	PreserveFiles      []string
}

// Exit codes from the host keychain-extraction helper.
const (
	exitNotFound           = 44
	exitInteractionDenied  = 36
)

// Warner receives non-fatal sync warnings (e.g. degraded keychain
// extraction) the way the orchestrator's logger does for other
// best-effort operations in §7.
type Warner func(format string, args ...any)

// Sync runs the algorithm in §4.3 for one agent, copying from hostDir
// (e.g. ~/.claude) into sandboxDir (the shared per-agent directory that
// gets bind-mounted into every container for that agent).
func Sync(rec AgentRecord, hostDir, sandboxDir string, warn Warner) error {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
		return err
	}

	// 1. Seed files, write-once.
	for _, sf := range rec.SeedFiles {
		dest := filepath.Join(sandboxDir, sf.Name)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			if err := os.WriteFile(dest, sf.Content, 0o644); err != nil {
				return err
			}
		}
	}

	// 2/3. Prior-data sentinel.
	hasPriorData := dirExists(filepath.Join(sandboxDir, "projects"))

	skip := toSet(rec.SkipEntries)
	copyDirs := toSet(rec.CopyDirs)
	preserve := toSet(rec.PreserveFiles)

	entries, err := os.ReadDir(hostDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if skip[name] {
			continue
		}
		src := filepath.Join(hostDir, name)
		dest := filepath.Join(sandboxDir, name)

		if e.IsDir() {
			if copyDirs[name] {
				if err := copyDirRecursive(src, dest); err != nil {
					warn("credsync: copy dir %s failed: %v", name, err)
				}
			}
			continue
		}

		if hasPriorData {
			continue
		}
		if preserve[name] {
			if _, err := os.Stat(dest); err == nil {
				continue
			}
		}
		if err := copyFile(src, dest); err != nil {
			warn("credsync: copy file %s failed: %v", name, err)
		}
	}

	// 5. Keychain extraction.
	if rec.KeychainCredential != nil {
		extractKeychainCredential(*rec.KeychainCredential, sandboxDir, warn)
	}

	// 6. Home-level seed files, write-once.
	for _, sf := range rec.HomeSeedFiles {
		dest := filepath.Join(sandboxDir, sf.Name)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			if err := os.WriteFile(dest, sf.Content, 0o644); err != nil {
				return err
			}
		}
	}

	return nil
}

func extractKeychainCredential(cred KeychainCredential, sandboxDir string, warn Warner) {
	out, err := exec.Command("security", "find-generic-password", "-s", cred.Service, "-w").Output()
	if err != nil {
		code := exitCode(err)
		switch code {
		case exitNotFound:
			return // silent skip
		case exitInteractionDenied:
			warn("credsync: keychain interaction not allowed for %s", cred.Service)
			return
		default:
			warn("credsync: keychain extraction failed for %s: %v", cred.Service, err)
			return
		}
	}
	if len(out) == 0 {
		return
	}
	dest := filepath.Join(sandboxDir, cred.DestFile)
	if err := os.WriteFile(dest, out, 0o600); err != nil {
		warn("credsync: writing %s failed: %v", cred.DestFile, err)
	}
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func copyDirRecursive(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
