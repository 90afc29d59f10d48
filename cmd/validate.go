package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/alantheprice/housegen/pkg/pipeline"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var descriptionFile string

	cmd := &cobra.Command{
		Use:   "validate [description]",
		Short: "Classify a description without planning or rendering",
		Long: `Asks the validator whether a description is about house architecture or
interior design and prints its verdict as JSON. Exits non-zero for an
invalid request only when --strict-domain is set.`,
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

			result := s.controller(nil).Validator().Validate(cmd.Context(), text)
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if !result.IsValid && s.cfg.Pipeline.RequireValidDomain {
				return pipeline.ErrInvalidDomain
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&descriptionFile, "file", "f", "", "read the description from a file")
	return cmd
}
