package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/proto"
)

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id|title>",
		Short: "Print the last 500 lines of a session's pane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(proto.Request{
				Type:       proto.ReqLogs,
				InstanceID: args[0],
				Params:     map[string]string{"profile": profileFlag(cmd)},
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			var capture string
			raw, _ := json.Marshal(resp.List)
			_ = json.Unmarshal(raw, &capture)
			fmt.Print(capture)
			return nil
		},
	}
}
