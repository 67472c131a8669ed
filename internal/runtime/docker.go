package runtime

import (
	"strings"

	"github.com/gandalfthegui/aoe/internal/errs"
)

// Docker adapts the docker CLI. It supports read-only bind mounts and uses
// `docker container inspect` for existence checks (inspect correctly fails
// for missing containers on this engine).
type Docker struct {
	base
	effectiveImage string
}

// NewDocker builds the adapter. effectiveImage, when non-empty, overrides
// the built-in default (resolved by callers from the config chain:
// override -> config default -> built-in default).
func NewDocker(effectiveImage string) *Docker {
	return &Docker{
		base: base{
			binary:                "docker",
			displayName:           "Docker",
			daemonCheckArgs:       []string{"info"},
			pullPrefix:            []string{"pull"},
			removeSubcommand:      "rm",
			supportsReadOnlyMount: true,
		},
		effectiveImage: effectiveImage,
	}
}

func (d *Docker) EffectiveDefaultImage() string {
	if d.effectiveImage != "" {
		return d.effectiveImage
	}
	return d.DefaultSandboxImage()
}

func (d *Docker) DoesContainerExist(name string) (bool, error) {
	_, err := d.command("container", "inspect", name).Output()
	return err == nil, nil
}

func (d *Docker) IsRunning(name string) (bool, error) {
	out, err := d.command("container", "inspect", "-f", "{{.State.Running}}", name).Output()
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

func (d *Docker) Create(name, image string, cfg ContainerConfig) (string, error) {
	exists, _ := d.DoesContainerExist(name)
	if exists {
		return "", errs.ErrContainerAlreadyExists
	}
	return d.runCreate(name, image, cfg)
}

// BatchRunningStates makes a single `docker ps` call per poll tick and
// post-filters by exact prefix, because Docker's --filter name= performs
// substring matching rather than prefix matching.
func (d *Docker) BatchRunningStates(prefix string) map[string]bool {
	out, err := d.command("ps", "-a", "--filter", "name="+prefix, "--format", "{{.Names}}\t{{.State}}").Output()
	if err != nil {
		return map[string]bool{}
	}
	return parseBatchOutput(string(out), prefix)
}

// parseBatchOutput parses `name\tstate` lines and post-filters by exact
// prefix, because Docker's --filter name= performs substring matching
// rather than prefix matching.
func parseBatchOutput(output, prefix string) map[string]bool {
	result := map[string]bool{}
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		name, state := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		result[name] = state == "running"
	}
	return result
}
