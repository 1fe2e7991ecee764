package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Study planner backend",
	Long: `Study planner backend: accounts, encrypted notes, a calendar and
timetable import from the university portal.`,
	SilenceUsage: true,
}

// Execute runs the root command. It exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
