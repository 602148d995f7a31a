package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lockdownd",
	Short: "Lockdown policy enforcement engine for exam sessions",
	Long: "Validates every navigation, window-creation attempt, deep-link\n" +
		"activation, and process-lifecycle event against a declared policy,\n" +
		"and refuses or terminates the session on violation.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
