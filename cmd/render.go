package cmd

import (
	"github.com/alantheprice/housegen/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <plan.json>",
		Short: "Render a saved floor plan",
		Long: `Checks a plan file against the room limit and renders every room and the
exterior, skipping the validator and planner. Useful to retry renders after
a credit or network problem.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(args[0])
			if err != nil {
				return err
			}

			s, err := opts.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			result := s.controller(progressPrinter(cmd, s)).RenderOnly(cmd.Context(), plan)
			switch r := result.(type) {
			case pipeline.Completed:
				printSummary(cmd.OutOrStdout(), r.Outcomes)
			case pipeline.Aborted:
				return &abortedError{Aborted: r}
			}
			return nil
		},
	}
}
