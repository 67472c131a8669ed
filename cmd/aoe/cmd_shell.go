package main

import (
	"encoding/json"
	"errors"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/proto"
	"github.com/gandalfthegui/aoe/internal/termio"
)

type shellInstance struct {
	Sandbox *struct {
		ContainerName string `json:"container_name"`
	} `json:"sandbox"`
}

func newShellCmd() *cobra.Command {
	var shellBin string
	cmd := &cobra.Command{
		Use:   "shell <id|title>",
		Short: "Open an interactive shell inside a sandboxed session's container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(proto.Request{
				Type:       proto.ReqStart,
				InstanceID: args[0],
				Params:     map[string]string{"profile": profileFlag(cmd), "skip_hooks": "true"},
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}

			raw, _ := json.Marshal(resp.Instance)
			var inst shellInstance
			if err := json.Unmarshal(raw, &inst); err != nil {
				return err
			}
			if inst.Sandbox == nil || inst.Sandbox.ContainerName == "" {
				return errors.New("session has no sandbox container to shell into")
			}

			dockerCmd := exec.Command("docker", "exec", "-it", inst.Sandbox.ContainerName, shellBin)
			return termio.RunInteractive(dockerCmd)
		},
	}
	cmd.Flags().StringVar(&shellBin, "shell", "sh", "shell binary to exec inside the container")
	return cmd
}
