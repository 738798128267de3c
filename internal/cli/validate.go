package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shellsage/shellsage/internal/safety"
	"github.com/shellsage/shellsage/internal/shelldomain"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <command text>",
		Short: "Classify a command's risk without generating or running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := shelldomain.ParseSafetyLevel(opts.safetyLevel)
			if err != nil {
				return err
			}
			validator, err := newValidator()
			if err != nil {
				return err
			}
			result, err := validator.Validate(strings.Join(args, " "), level)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), safety.Explain(result))
			if result.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "reason: %s\n", result.Reason)
			}
			return nil
		},
	}
}
