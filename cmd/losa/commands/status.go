package commands

import (
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <application-id>",
		Short: "Show an application's current state",
		Long: `Show the current snapshot of an application: status, requested
loan, credit score, risk assessment and decision, when present.

Use --json for the full snapshot.`,
		Example: `  # Human-readable summary
  losa status LOAN-20260828-A1B2C3D4

  # Full snapshot as JSON
  losa status LOAN-20260828-A1B2C3D4 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := rt.engine.GetApplication(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printApplication(app)
		},
	}

	return cmd
}
