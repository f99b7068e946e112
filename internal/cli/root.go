// Package cli implements the ubridge command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ubridge",
	Short: "Bridge AI agents to running editor instances",
	Long: `ubridge exposes running visual-editor instances to AI agents over MCP.

It discovers editor instances on the local machine, pools connections to
them, and serves execute_command / list_instances / select_instance tools
on stdio or over authenticated HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the build version shown by --version and reported to
// MCP clients.
func SetVersion(v string) {
	if v != "" {
		version = v
		rootCmd.Version = v
	}
}
