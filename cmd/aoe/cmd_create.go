package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/multiplex"
	"github.com/gandalfthegui/aoe/internal/proto"
)

func newCreateCmd() *cobra.Command {
	var (
		path, group, tool, branch, image string
		newBranch, sandbox, yolo         bool
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Register a new agent session without starting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if avail := multiplex.DetectTools(); (tool == "claude" && !avail.Claude) || (tool == "opencode" && !avail.OpenCode) {
				fmt.Fprintf(os.Stderr, "aoe: warning: %s does not appear to be installed\n", tool)
			}
			resp, err := send(proto.Request{
				Type: proto.ReqCreate,
				Params: map[string]string{
					"title":      args[0],
					"path":       path,
					"group":      group,
					"tool":       tool,
					"branch":     branch,
					"image":      image,
					"new_branch": boolStr(newBranch),
					"sandbox":    boolStr(sandbox),
					"yolo":       boolStr(yolo),
					"profile":    profileFlag(cmd),
				},
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			data, _ := json.MarshalIndent(resp.Instance, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", ".", "project path")
	cmd.Flags().StringVar(&group, "group", "", "group path, e.g. backend/auth")
	cmd.Flags().StringVar(&tool, "tool", "claude", "agent tool: claude, opencode, codex, gemini, vibe")
	cmd.Flags().StringVar(&branch, "branch", "", "create/attach a worktree on this branch")
	cmd.Flags().BoolVar(&newBranch, "new-branch", false, "create the branch at HEAD if it doesn't exist")
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, "run the agent inside an isolated container")
	cmd.Flags().StringVar(&image, "image", "", "sandbox image (default: resolved config default)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "skip the agent's own permission prompts")
	return cmd
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
