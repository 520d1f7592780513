// Package cli defines the Cobra commands of the assessment session service.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set via ldflags at build time

var rootCmd = &cobra.Command{
	Use:   "assessment-session-service",
	Short: "Timed assessment sessions for the hiring portal",
	Long: `Hosts timed assessment sessions for job applicants: loads the
assessment from the portal, runs the countdown, and submits the answers
as an application when the candidate finishes or time runs out.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}
