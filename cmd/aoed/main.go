// Command aoed is the background daemon: it serves the control socket and
// runs the status/deletion pollers described in §4.8. The CLI (cmd/aoe)
// starts it on demand if the socket isn't reachable, the same way the
// donor's grove auto-starts groved.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gandalfthegui/aoe/internal/daemon"
	"github.com/gandalfthegui/aoe/internal/envfile"
	"github.com/gandalfthegui/aoe/internal/logging"
	"github.com/gandalfthegui/aoe/internal/orchestrator"
	"github.com/gandalfthegui/aoe/internal/storage"
)

func main() {
	home := rootDir()
	log := logging.New()

	// aoed doesn't inherit the user's interactive shell environment (it's
	// typically launched detached or as a login service), so credentials
	// saved via `aoe token` are re-applied here on every startup.
	for k, v := range envfile.Load(filepath.Join(home, "env")) {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}

	store, err := storage.New(home)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}

	hostHome, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("cannot determine user home directory; credential sync disabled")
	}

	orch := &orchestrator.Orchestrator{
		Store:       store,
		RuntimeFor:  orchestrator.NewRuntimeFactory(),
		Log:         log,
		HomeDir:     home,
		HostHomeDir: hostHome,
	}

	profile := storage.DefaultProfile
	if p := os.Getenv("AOE_PROFILE"); p != "" {
		profile = p
	}

	d := daemon.New(orch, profile)
	socketPath := filepath.Join(home, "aoed.sock")
	if err := d.Run(socketPath); err != nil {
		log.Fatal().Err(err).Msg("daemon exited")
	}
}

func rootDir() string {
	if v := os.Getenv("AOE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "aoed: cannot determine home directory:", err)
		os.Exit(1)
	}
	return filepath.Join(home, ".aoe")
}
