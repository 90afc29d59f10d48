package cmd

import (
	"fmt"

	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var (
		descriptionFile string
		save            bool
	)

	cmd := &cobra.Command{
		Use:   "plan [description]",
		Short: "Generate a floor plan without rendering",
		Long: `Asks the planner for a structured floor plan and prints it as JSON.
With --save the plan is written to <output>/plan.json, ready for
'housegen render'. The room limit is not enforced here.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDescription(cmd, args, descriptionFile)
			if err != nil {
				return err
			}
			if text == "" {
				return pipeline.ErrEmptyInput
			}

			s, err := opts.openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.controller(nil).Planner().GeneratePlan(cmd.Context(), text)
			if err != nil {
				return err
			}

			var plan house.HousePlan
			switch p := resp.(type) {
			case house.PlanError:
				return fmt.Errorf("%w: %s", pipeline.ErrPlanRejected, p.Error)
			case house.HousePlan:
				plan = p
			}

			data, err := house.EncodePlan(plan)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, string(data))

			if save {
				path, diff, err := savePlan(s.cfg.Output.Dir, plan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "plan saved to %s\n", path)
				if diff != "" {
					fmt.Fprint(cmd.ErrOrStderr(), indent(diff))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptionFile, "file", "f", "", "read the description from a file")
	cmd.Flags().BoolVar(&save, "save", false, "write the plan to <output>/plan.json")
	return cmd
}
