package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/multiplex"
	"github.com/gandalfthegui/aoe/internal/proto"
)

// attachInstance is the subset of session.Instance fields needed to derive
// the multiplexer session name; decoded from the daemon's generic
// Instance any field rather than importing the full struct twice.
type attachInstance struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <id|title>",
		Short: "Attach your terminal to a session (starts it first if needed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(proto.Request{
				Type:       proto.ReqAttach,
				InstanceID: args[0],
				Params:     map[string]string{"profile": profileFlag(cmd)},
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}

			raw, _ := json.Marshal(resp.Instance)
			var inst attachInstance
			if err := json.Unmarshal(raw, &inst); err != nil {
				return fmt.Errorf("decode instance: %w", err)
			}

			// The multiplexer session is addressable from any host process,
			// so attach happens directly here rather than proxied through
			// the daemon's control connection.
			agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
			return agentSession.Attach()
		},
	}
}
