package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "losa",
		Short: "Losa - Loan Origination Workflow Engine",
		Long: `Losa drives loan applications through a staged underwriting workflow:
validation, document verification, credit check, risk assessment and a
final decision, with a human review queue for cases automation may not
settle on its own.

Every state change is committed with optimistic concurrency and an
append-only audit trail, so any number of workers can safely process
the same store.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to the configured store, or in-memory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newSubmitCommand())
	rootCmd.AddCommand(newAdvanceCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newAttachCommand())
	rootCmd.AddCommand(newReviewCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newWorkCommand())

	return rootCmd
}
