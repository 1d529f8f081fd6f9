package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webclone.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webclone",
		Short: "Clone a web page and its assets into a local folder",
		Long: `webclone fetches a web page, downloads the scripts, stylesheets, images
and pages it references and rewrites the page so that the copy works offline.

Each site is written to <output-dir>/<host>/ and replaced on every run.
Requests can be routed through Tor with --tor or --embedded-tor.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCloneCmd())
	cmd.AddCommand(NewServeCmd())
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
