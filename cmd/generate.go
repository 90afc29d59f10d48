package cmd

import (
	"fmt"
	"strings"

	"github.com/alantheprice/housegen/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var descriptionFile string

	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Validate, plan and render a house",
		Long: `Runs the full pipeline on a house description: the request is classified,
a floor plan is generated, every floor is checked against the room limit and
then each room and the exterior are rendered one after another.

A render that fails is reported and skipped; the other renders continue.
Planning failures and plans over the room limit stop the run with a
non-zero exit status.

Examples:
  housegen generate "a two storey modern house with 3 bedrooms"
  housegen generate --file brief.txt
  echo "a small cottage" | housegen generate`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDescription(cmd, args, descriptionFile)
			if err != nil {
				return err
			}

			s, err := opts.openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			controller := s.controller(progressPrinter(cmd, s))
			result := controller.Run(cmd.Context(), text)

			switch r := result.(type) {
			case pipeline.Completed:
				printSummary(out, r.Outcomes)
				return nil
			case pipeline.Aborted:
				return &abortedError{Aborted: r}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptionFile, "file", "f", "", "read the description from a file")
	return cmd
}

// progressPrinter reports pipeline events on the command's output and saves
// plan.json as soon as a plan exists.
func progressPrinter(cmd *cobra.Command, s *session) pipeline.Observer {
	out := cmd.OutOrStdout()
	return func(ev pipeline.Event) {
		switch {
		case ev.Aborted != nil:
			// reported by the caller
		case ev.Validation != nil:
			if ev.Validation.IsValid {
				fmt.Fprintf(out, "  request accepted: %s\n", ev.Validation.RefinedPrompt)
			} else {
				fmt.Fprintln(out, "  ⚠️  request does not look like a house design brief")
			}
		case ev.Plan != nil:
			fmt.Fprintf(out, "  %d floor(s), %d room(s), exterior: %s\n",
				len(ev.Plan.Floors), ev.Plan.RoomCount(), ev.Plan.ExteriorStyle)
			if !s.cfg.Output.WritePlan {
				return
			}
			path, diff, err := savePlan(s.cfg.Output.Dir, *ev.Plan)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %v\n", err)
				return
			}
			fmt.Fprintf(out, "  plan saved to %s\n", path)
			if diff != "" {
				fmt.Fprint(out, indent(diff))
			}
		case ev.Target != nil:
			printOutcome(out, *ev.Target, ev.Outcome)
		default:
			if label := stageLabel(ev.Stage); label != "" {
				fmt.Fprintln(out, label)
			}
		}
	}
}

func stageLabel(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageValidating:
		return "Validating request..."
	case pipeline.StagePlanning:
		return "Planning..."
	case pipeline.StageRendering:
		return "Rendering..."
	}
	return ""
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString("    ")
		b.WriteString(l)
	}
	return b.String()
}
