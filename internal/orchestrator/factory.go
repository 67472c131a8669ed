package orchestrator

import "github.com/gandalfthegui/aoe/internal/runtime"

// NewRuntimeFactory builds the RuntimeFor callback used by Orchestrator,
// selecting Docker or AppleContainer per the resolved config's
// container_runtime field ("docker" is the default, matching the donor's
// own Docker-only assumption generalized to two engines per §4.1).
func NewRuntimeFactory() func(engine, image string) runtime.Adapter {
	return func(engine, image string) runtime.Adapter {
		switch engine {
		case "apple_container":
			return runtime.NewAppleContainer(image)
		default:
			return runtime.NewDocker(image)
		}
	}
}
