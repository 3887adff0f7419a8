package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <application-id>",
		Short: "Show an application's audit trail",
		Long: `Show the append-only audit trail of an application in commit
order: every submission, transition, retry, document attachment and
review decision, with the field changes each commit applied.`,
		Example: `  # Print the trail
  losa audit LOAN-20260828-A1B2C3D4

  # Trail as JSON
  losa audit LOAN-20260828-A1B2C3D4 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			trail, err := rt.engine.AuditTrail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(trail)
			}

			for _, e := range trail {
				fmt.Printf("%3d  %s  %-24s", e.Sequence, e.RecordedAt.Format("2006-01-02 15:04:05"), e.Action)
				if e.FromStatus != "" || e.ToStatus != "" {
					fmt.Printf("  %s -> %s", e.FromStatus, e.ToStatus)
				}
				fmt.Printf("  (%s)\n", e.Actor)
				if e.Detail != "" {
					fmt.Printf("     %s\n", e.Detail)
				}
				if verbose {
					for _, ch := range e.Changes {
						if ch.Before != "" {
							fmt.Printf("     %s: %s -> %s\n", ch.Path, ch.Before, ch.After)
						} else {
							fmt.Printf("     %s: %s\n", ch.Path, ch.After)
						}
					}
				}
			}
			return nil
		},
	}

	return cmd
}
