package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for DeskMaster.
// Keywords given directly to the root command are run as with "run".
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deskmaster [keyword...]",
		Short: "Shopping search automation over a running Chrome",
		Long: `DeskMaster searches Naver Shopping in an already running Chrome, opens
listings whose review count is in the configured range, and keeps only
the tabs sold through the platform's own mall.

Start Chrome with --remote-debugging-port=9222, open the search page, and
pass one or more keywords.`,
		Version:       getVersion(),
		Args:          cobra.ArbitraryArgs,
		RunE:          runRunCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .deskmaster.yaml in current or home directory)")
	addRunFlags(cmd)

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
