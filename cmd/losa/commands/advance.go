package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAdvanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance <application-id>",
		Short: "Run the workflow for an application",
		Long: `Drive an application forward until it reaches a decision or a
suspension point.

The workflow runs validation, document verification, credit check,
risk assessment and the decision rule in order. It stops early when
documents are missing (awaiting_documents) or when the case needs an
underwriter (pending_human_review). Advancing a decided application
is a no-op.

Transient capability failures are retried with exponential backoff;
a lost version race against another worker triggers a reload and
re-evaluation.`,
		Example: `  # Process an application
  losa advance LOAN-20260828-A1B2C3D4

  # Process against a shared SQLite store
  losa advance LOAN-20260828-A1B2C3D4 --db losa.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := rt.engine.Advance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			log.Info().
				Str("application", app.ID).
				Str("status", string(app.Status)).
				Msg("Workflow advanced")
			return printApplication(app)
		},
	}

	return cmd
}
