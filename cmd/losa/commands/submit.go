package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openlosa/losa/pkg/loan"
)

func newSubmitCommand() *cobra.Command {
	var advance bool

	cmd := &cobra.Command{
		Use:   "submit <application.json>",
		Short: "Submit a loan application",
		Long: `Submit a loan application from a JSON file.

The file holds the applicant's personal, employment and financial
details plus the requested loan. Derived fields (status, version,
decision) are assigned by the engine; any values in the file are
ignored.

Structural problems (malformed SSN, out-of-range amounts, missing
fields) are rejected before anything is persisted.`,
		Example: `  # Submit an application
  losa submit application.json

  # Submit and immediately run the workflow
  losa submit application.json --advance`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading application %s: %w", args[0], err)
			}
			var app loan.Application
			if err := json.Unmarshal(raw, &app); err != nil {
				return fmt.Errorf("parsing application %s: %w", args[0], err)
			}

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			submitted, err := rt.engine.SubmitApplication(cmd.Context(), &app)
			if err != nil {
				return err
			}
			log.Info().
				Str("application", submitted.ID).
				Str("status", string(submitted.Status)).
				Msg("Application submitted")

			if advance {
				submitted, err = rt.engine.Advance(cmd.Context(), submitted.ID)
				if err != nil {
					return err
				}
			}
			return printApplication(submitted)
		},
	}

	cmd.Flags().BoolVar(&advance, "advance", false, "run the workflow immediately after submission")

	return cmd
}
