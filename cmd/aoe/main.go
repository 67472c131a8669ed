// Command aoe is the CLI driver for the session orchestrator: it talks to
// aoed over a Unix control socket (auto-starting it if not already
// running), and for attach hands the real terminal to tmux directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "aoe",
		Short: "Supervise AI coding agent sessions across worktrees and sandboxes",
	}
	root.PersistentFlags().String("profile", "", "profile to operate on (default: $AOE_PROFILE or \"default\")")

	root.AddCommand(
		newCreateCmd(),
		newStartCmd(),
		newAttachCmd(),
		newStopCmd(),
		newRestartCmd(),
		newDeleteCmd(),
		newDeleteGroupCmd(),
		newListCmd(),
		newRenameCmd(),
		newLogsCmd(),
		newTokenCmd(),
		newShellCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aoe:", err)
		os.Exit(1)
	}
}

func profileFlag(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("profile")
	if p != "" {
		return p
	}
	return currentProfile()
}
