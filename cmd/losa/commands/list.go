package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlosa/losa/pkg/loan"
)

func newListCommand() *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications by status",
		Long: `List applications currently in the given status, most recently
updated first.

Statuses: created, validating, verifying_documents,
awaiting_documents, checking_credit, assessing_risk, deciding,
pending_human_review, approved, rejected, counter_offered, failed.`,
		Example: `  # The review queue
  losa list --status pending_human_review

  # Second page of approved applications
  losa list --status approved --limit 20 --offset 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			apps, err := rt.engine.ListByStatus(cmd.Context(), loan.Status(status), limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(apps)
			}

			for _, app := range apps {
				fmt.Printf("%-26s %-22s %-10s %12.2f  %s %s\n",
					app.ID, app.Status, app.Details.Type, app.Details.RequestedAmount,
					app.Personal.FirstName, app.Personal.LastName)
			}
			if len(apps) == 0 {
				fmt.Printf("No applications in status %s\n", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "application status to list")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum applications to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "applications to skip")
	cmd.MarkFlagRequired("status")

	return cmd
}
