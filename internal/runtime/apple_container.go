package runtime

import (
	"encoding/json"
	"strings"

	"github.com/gandalfthegui/aoe/internal/errs"
)

// AppleContainer adapts the `container` CLI shipped with macOS's Apple
// Container runtime. Unlike Docker, its `inspect` subcommand exits 0 even
// for containers that don't exist, so existence is checked via `logs`
// instead, and it never supports read-only bind mounts, so BuildCreateArgs
// (inherited from base) silently downgrades `:ro` requests.
type AppleContainer struct {
	base
	effectiveImage string
}

func NewAppleContainer(effectiveImage string) *AppleContainer {
	return &AppleContainer{
		base: base{
			binary:                "container",
			displayName:           "Apple Container",
			daemonCheckArgs:       []string{"system", "status"},
			pullPrefix:            []string{"image", "pull"},
			removeSubcommand:      "delete",
			supportsReadOnlyMount: false,
		},
		effectiveImage: effectiveImage,
	}
}

func (a *AppleContainer) EffectiveDefaultImage() string {
	if a.effectiveImage != "" {
		return a.effectiveImage
	}
	return a.DefaultSandboxImage()
}

func (a *AppleContainer) DoesContainerExist(name string) (bool, error) {
	_, err := a.command("logs", name).Output()
	return err == nil, nil
}

func (a *AppleContainer) IsRunning(name string) (bool, error) {
	out, err := a.command("inspect", name).Output()
	if err != nil {
		return false, nil
	}
	var entries []map[string]any
	if err := json.Unmarshal(out, &entries); err != nil || len(entries) == 0 {
		return false, nil
	}
	status, _ := entries[0]["status"].(string)
	return status == "running", nil
}

func (a *AppleContainer) Create(name, image string, cfg ContainerConfig) (string, error) {
	exists, _ := a.DoesContainerExist(name)
	if exists {
		return "", errs.ErrContainerAlreadyExists
	}
	return a.runCreate(name, image, cfg)
}

// BatchRunningStates is not implemented for this engine and always returns
// an empty map. The status poller then has no container state for these
// instances and classifies them from their pane alone; it makes no
// per-instance IsRunning calls.
func (a *AppleContainer) BatchRunningStates(prefix string) map[string]bool {
	_ = strings.TrimSpace(prefix)
	return map[string]bool{}
}
