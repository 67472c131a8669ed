package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gandalfthegui/aoe/internal/envfile"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Set or replace the CLAUDE_CODE_OAUTH_TOKEN used by sandboxed claude sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken()
		},
	}
}

// runToken replaces any existing CLAUDE_CODE_OAUTH_TOKEN entry rather than
// appending, so repeated calls don't accumulate stale tokens. aoed picks
// the new value up on its next restart (see internal/envfile).
func runToken() error {
	root := rootDir()
	envPath := filepath.Join(root, "env")

	env := envfile.Load(envPath)
	if env["CLAUDE_CODE_OAUTH_TOKEN"] != "" {
		fmt.Printf("\n%sCurrent token:%s CLAUDE_CODE_OAUTH_TOKEN is set\n\n", colorBold, colorReset)
	} else {
		fmt.Printf("\n%sNo token currently set.%s\n\n", colorDim, colorReset)
	}

	fmt.Printf("Generate a new token by running:\n\n")
	fmt.Printf("    %sclaude setup-token%s\n\n", colorCyan, colorReset)
	fmt.Printf("%sNew token%s (or Enter to cancel): ", colorBold, colorReset)

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return nil
	}
	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		fmt.Printf("%scancelled%s\n", colorDim, colorReset)
		return nil
	}

	existing, _ := os.ReadFile(envPath)
	var kept []string
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "CLAUDE_CODE_OAUTH_TOKEN=") {
			continue
		}
		kept = append(kept, line)
	}
	for len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) == "" {
		kept = kept[:len(kept)-1]
	}
	kept = append(kept, "CLAUDE_CODE_OAUTH_TOKEN="+token)
	content := strings.Join(kept, "\n") + "\n"

	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		return err
	}

	fmt.Printf("\n%s✓  Token saved%s %s%s%s\n\n", colorGreen+colorBold, colorReset, colorDim, envPath, colorReset)
	fmt.Printf("%srestart aoed for the new token to take effect%s\n", colorDim, colorReset)
	return nil
}
