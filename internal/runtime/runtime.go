// Package runtime provides a uniform surface over container runtime CLIs
// (Docker and Apple Container), shelling out to the chosen binary rather
// than linking a runtime client library -- per the Non-goal that container
// engine internals are never reimplemented in-process.
package runtime

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gandalfthegui/aoe/internal/errs"
)

// VolumeMount is a single bind mount into the container.
type VolumeMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// NamedVolume is a runtime-managed (non-bind) volume.
type NamedVolume struct {
	Name          string
	ContainerPath string
}

// ContainerConfig describes everything needed to create a container.
type ContainerConfig struct {
	WorkingDir       string
	Volumes          []VolumeMount
	NamedVolumes     []NamedVolume
	AnonymousVolumes []string
	Environment      [][2]string
	CPULimit         string
	MemoryLimit      string
}

// Adapter is the capability set exposed independent of engine, matching
// §4.1's operation list exactly.
type Adapter interface {
	Name() string
	IsAvailable() bool
	IsDaemonRunning() bool
	Version() (string, error)
	ImageExistsLocally(image string) bool
	Pull(image string) error
	EnsureImage(image string) error
	DefaultSandboxImage() string
	EffectiveDefaultImage() string

	DoesContainerExist(name string) (bool, error)
	IsRunning(name string) (bool, error)
	BuildCreateArgs(name, image string, cfg ContainerConfig) []string
	Create(name, image string, cfg ContainerConfig) (string, error)
	Start(name string) error
	Stop(name string) error
	Remove(name string, force bool) error
	ExecCommandString(name string, options string) string
	Exec(name string, argv []string) ([]byte, []byte, error)
	BatchRunningStates(prefix string) map[string]bool
}

// base holds everything that is identical in shape between engines but
// differs in value -- binary name, daemon-check subcommand, pull prefix,
// remove subcommand, and whether the engine honours read-only bind mounts.
// This mirrors the donor's single-engine docker.go generalized to a shared
// struct the way the original Rust RuntimeBase does.
type base struct {
	binary               string
	displayName          string
	daemonCheckArgs       []string
	pullPrefix            []string
	removeSubcommand      string
	supportsReadOnlyMount bool
}

const defaultSandboxImage = "ghcr.io/gandalfthegui/aoe-sandbox:latest"

func (b *base) Name() string { return b.displayName }

func (b *base) command(args ...string) *exec.Cmd {
	return exec.Command(b.binary, args...)
}

func (b *base) IsAvailable() bool {
	_, err := b.command("--version").Output()
	return err == nil
}

func (b *base) IsDaemonRunning() bool {
	_, err := b.command(b.daemonCheckArgs...).Output()
	return err == nil
}

func (b *base) Version() (string, error) {
	out, err := b.command("--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s version: %w", b.displayName, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *base) ImageExistsLocally(image string) bool {
	_, err := b.command("image", "inspect", image).Output()
	return err == nil
}

func (b *base) Pull(image string) error {
	args := append(append([]string{}, b.pullPrefix...), image)
	out, err := b.command(args...).CombinedOutput()
	if err != nil {
		return classifyFailure(string(out), errs.ErrImageNotFound)
	}
	return nil
}

func (b *base) EnsureImage(image string) error {
	if b.ImageExistsLocally(image) {
		return nil
	}
	return b.Pull(image)
}

func (b *base) DefaultSandboxImage() string { return defaultSandboxImage }

// EffectiveDefaultImage is overridden per concrete adapter when a config
// layer is available; the base falls back to the built-in default.
func (b *base) EffectiveDefaultImage() string { return b.DefaultSandboxImage() }

// BuildCreateArgs has a fixed argument order: run flag, detach, name,
// workdir, each volume mount (host/named/anonymous, in that order), each
// env var, cpu/memory limits, image, then "sleep infinity" to keep the
// container alive for future execs.
func (b *base) BuildCreateArgs(name, image string, cfg ContainerConfig) []string {
	args := []string{"run", "-d", "--name", name, "-w", cfg.WorkingDir}
	for _, v := range cfg.Volumes {
		spec := v.HostPath + ":" + v.ContainerPath
		if v.ReadOnly {
			if b.supportsReadOnlyMount {
				spec += ":ro"
			}
			// Engines that don't support read-only bind mounts silently
			// downgrade to read-write; no warning is logged for the
			// downgrade.
		}
		args = append(args, "-v", spec)
	}
	for _, nv := range cfg.NamedVolumes {
		args = append(args, "-v", nv.Name+":"+nv.ContainerPath)
	}
	for _, av := range cfg.AnonymousVolumes {
		args = append(args, "-v", av)
	}
	for _, e := range cfg.Environment {
		args = append(args, "-e", e[0]+"="+e[1])
	}
	if cfg.CPULimit != "" {
		args = append(args, "--cpus", cfg.CPULimit)
	}
	if cfg.MemoryLimit != "" {
		args = append(args, "-m", cfg.MemoryLimit)
	}
	args = append(args, image, "sleep", "infinity")
	return args
}

func (b *base) runCreate(name, image string, cfg ContainerConfig) (string, error) {
	args := b.BuildCreateArgs(name, image, cfg)
	out, err := b.command(args...).CombinedOutput()
	if err != nil {
		return "", classifyFailure(string(out), errs.ErrCreateFailed)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *base) Start(name string) error {
	if _, err := b.command("start", name).CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStartFailed, err)
	}
	return nil
}

func (b *base) Stop(name string) error {
	out, err := b.command("stop", name).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "No such container") {
			return errs.ErrContainerNotFound
		}
		return fmt.Errorf("%w: %s", errs.ErrStopFailed, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *base) Remove(name string, force bool) error {
	args := []string{b.removeSubcommand}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	out, err := b.command(args...).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "No such container") {
			return errs.ErrContainerNotFound
		}
		return fmt.Errorf("%w: %s", errs.ErrRemoveFailed, strings.TrimSpace(string(out)))
	}
	return nil
}

// ExecCommandString formats an `exec -it` command line for the container;
// the orchestrator uses it as the prefix of the agent's launch command. It
// never runs anything itself; Exec below does.
func (b *base) ExecCommandString(name string, options string) string {
	parts := []string{b.binary, "exec", "-it"}
	if options != "" {
		parts = append(parts, options)
	}
	parts = append(parts, name)
	return strings.Join(parts, " ")
}

func (b *base) Exec(name string, argv []string) ([]byte, []byte, error) {
	args := append([]string{"exec", name}, argv...)
	cmd := b.command(args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// classifyFailure maps a chunk of stderr/stdout into one of the domain
// error kinds from §4.1's failure-mapping table.
func classifyFailure(output string, fallback error) error {
	switch {
	case strings.Contains(output, "permission denied"):
		return errs.ErrPermissionDenied
	case strings.Contains(output, "Cannot connect to the") && strings.Contains(output, "daemon"):
		return errs.ErrDaemonNotRunning
	case strings.Contains(output, "No such image"), strings.Contains(output, "Unable to find image"):
		return errs.ErrImageNotFound
	default:
		return fmt.Errorf("%w: %s", fallback, strings.TrimSpace(output))
	}
}
