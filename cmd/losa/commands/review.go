package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/loan"
)

func newReviewCommand() *cobra.Command {
	var (
		reviewer  string
		outcome   string
		amount    float64
		term      int
		rate      float64
		rationale string
		conds     []string
		reasons   []string
	)

	cmd := &cobra.Command{
		Use:   "review <application-id>",
		Short: "Record an underwriter's ruling",
		Long: `Record an underwriter's ruling on an application pending human
review.

The outcome must be final: approved, rejected or counter_offer.
Approvals and counter-offers need an amount and a term; rejections
need at least one reason. A rationale is always required and lands in
the audit trail.`,
		Example: `  # Approve with adjusted terms
  losa review LOAN-20260828-A1B2C3D4 \
    --reviewer underwriter-17 --outcome approved \
    --amount 20000 --term 48 --rate 7.25 \
    --rationale "strong compensating savings balance"

  # Reject
  losa review LOAN-20260828-A1B2C3D4 \
    --reviewer underwriter-17 --outcome rejected \
    --reason "income documentation inconsistent" \
    --rationale "declared income not supported by documents"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := rt.engine.SubmitHumanReviewDecision(cmd.Context(), args[0], engine.ReviewDecision{
				Reviewer:           reviewer,
				Outcome:            loan.DecisionOutcome(outcome),
				ApprovedAmount:     amount,
				ApprovedTermMonths: term,
				InterestRate:       rate,
				Conditions:         conds,
				RejectionReasons:   reasons,
				Rationale:          rationale,
			})
			if err != nil {
				return err
			}
			log.Info().
				Str("application", app.ID).
				Str("reviewer", reviewer).
				Str("status", string(app.Status)).
				Msg("Review decision recorded")
			return printApplication(app)
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer reference")
	cmd.Flags().StringVar(&outcome, "outcome", "", "ruling: approved, rejected or counter_offer")
	cmd.Flags().Float64Var(&amount, "amount", 0, "approved amount")
	cmd.Flags().IntVar(&term, "term", 0, "approved term in months")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual interest rate percentage")
	cmd.Flags().StringVar(&rationale, "rationale", "", "written justification")
	cmd.Flags().StringArrayVar(&conds, "condition", nil, "offer condition (repeatable)")
	cmd.Flags().StringArrayVar(&reasons, "reason", nil, "rejection reason (repeatable)")
	cmd.MarkFlagRequired("reviewer")
	cmd.MarkFlagRequired("outcome")
	cmd.MarkFlagRequired("rationale")

	return cmd
}
