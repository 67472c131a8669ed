package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/proto"
)

func newStartCmd() *cobra.Command {
	var skipHooks bool
	cmd := &cobra.Command{
		Use:   "start <id|title>",
		Short: "Start the agent session (spawns the multiplexer session and, if sandboxed, the container)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleInstanceRequest(cmd, proto.ReqStart, args[0], map[string]string{
				"skip_hooks": boolStr(skipHooks),
			})
		},
	}
	cmd.Flags().BoolVar(&skipHooks, "skip-hooks", false, "don't run on_launch hooks")
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [id|title]",
		Short: "Kill the agent session and stop (not remove) its container",
		Long:  "Kill the agent session and stop (not remove) its container.\nWith no argument, targets whichever session the caller is attached to.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleInstanceRequest(cmd, proto.ReqStop, firstArg(args), nil)
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart [id|title]",
		Short: "Kill and restart the agent session in its existing worktree/container",
		Long:  "Kill and restart the agent session in its existing worktree/container.\nWith no argument, targets whichever session the caller is attached to.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleInstanceRequest(cmd, proto.ReqRestart, firstArg(args), nil)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var deleteWorktree, deleteBranch, force, keepSandbox bool
	cmd := &cobra.Command{
		Use:   "delete [id|title]",
		Short: "Stop and remove a session (container, and optionally worktree/branch)",
		Long:  "Stop and remove a session (container, and optionally worktree/branch).\nWith no argument, targets whichever session the caller is attached to.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleInstanceRequest(cmd, proto.ReqDelete, firstArg(args), map[string]string{
				"delete_worktree": boolStr(deleteWorktree),
				"delete_branch":   boolStr(deleteBranch),
				"force":           boolStr(force),
				"delete_sandbox":  boolStr(!keepSandbox),
			})
		},
	}
	cmd.Flags().BoolVar(&deleteWorktree, "delete-worktree", false, "also remove the git worktree")
	cmd.Flags().BoolVar(&deleteBranch, "delete-branch", false, "also delete the branch (requires --delete-worktree)")
	cmd.Flags().BoolVar(&force, "force", false, "force-remove even with uncommitted changes")
	cmd.Flags().BoolVar(&keepSandbox, "keep-sandbox", false, "leave the sandbox container in place instead of removing it")
	return cmd
}

func newDeleteGroupCmd() *cobra.Command {
	var deleteSessions, deleteWorktree, deleteBranch, force, keepSandbox bool
	cmd := &cobra.Command{
		Use:   "delete-group <group-path>",
		Short: "Remove a group, optionally deleting every session under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(proto.Request{
				Type:       proto.ReqDeleteGroup,
				InstanceID: args[0],
				Params: map[string]string{
					"profile":         profileFlag(cmd),
					"delete_sessions": boolStr(deleteSessions),
					"delete_worktree": boolStr(deleteWorktree),
					"delete_branch":   boolStr(deleteBranch),
					"force":           boolStr(force),
					"delete_sandbox":  boolStr(!keepSandbox),
				},
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleteSessions, "delete-sessions", false, "delete every session in the group instead of just ungrouping it")
	cmd.Flags().BoolVar(&deleteWorktree, "delete-worktree", false, "also remove each session's git worktree (requires --delete-sessions)")
	cmd.Flags().BoolVar(&deleteBranch, "delete-branch", false, "also delete each session's branch (requires --delete-worktree)")
	cmd.Flags().BoolVar(&force, "force", false, "force-remove even with uncommitted changes")
	cmd.Flags().BoolVar(&keepSandbox, "keep-sandbox", false, "leave sandbox containers in place instead of removing them")
	return cmd
}

func newRenameCmd() *cobra.Command {
	var title, group, profile string
	cmd := &cobra.Command{
		Use:   "rename <id|title>",
		Short: "Rename a session, move its group, or move it to another profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simpleInstanceRequest(cmd, proto.ReqRename, args[0], map[string]string{
				"title":   title,
				"group":   group,
				"profile": profile,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&group, "group", "", "new group path")
	cmd.Flags().StringVar(&profile, "to-profile", "", "move to this profile")
	return cmd
}

// listRow is the subset of session.Instance needed to render the table,
// decoded from the daemon's generic List field.
type listRow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	GroupPath string `json:"group_path"`
	Tool      string `json:"tool"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every session in the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(proto.Request{Type: proto.ReqList, Params: map[string]string{"profile": profileFlag(cmd)}})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			if asJSON {
				data, _ := json.MarshalIndent(resp.List, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			return printTable(resp.List)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON instead of a table")
	return cmd
}

func printTable(list any) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	var rows []listRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no sessions")
		return nil
	}
	for _, r := range rows {
		created, _ := time.Parse(time.RFC3339, r.CreatedAt)
		uptime := formatUptime(int64(time.Since(created).Seconds()))
		group := r.GroupPath
		if group == "" {
			group = "-"
		}
		fmt.Printf("%-8s %-20s %-16s %s%-9s%s %-7s %s\n",
			r.ID[:min(8, len(r.ID))], truncate(r.Title, 20), truncate(group, 16),
			colorState(r.Status), r.Status, colorReset, r.Tool, uptime)
	}
	return nil
}

// firstArg returns args[0], or "" if args is empty -- an empty InstanceID
// tells the daemon to auto-detect the caller's own session.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// simpleInstanceRequest is the shared shape for the single-instance
// request/response commands that print the returned instance as JSON.
func simpleInstanceRequest(cmd *cobra.Command, reqType, identifier string, extra map[string]string) error {
	params := map[string]string{"profile": profileFlag(cmd)}
	for k, v := range extra {
		params[k] = v
	}
	resp, err := send(proto.Request{Type: reqType, InstanceID: identifier, Params: params})
	if err != nil {
		return err
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	if resp.Instance != nil {
		data, _ := json.MarshalIndent(resp.Instance, "", "  ")
		fmt.Println(string(data))
	}
	return nil
}
