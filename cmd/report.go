package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var flags *StandardFlags

	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"r"},
		Short:   "Show rendered and unrendered templates",
		Long: `Discover every template under the root and partition them by whether a
render record exists in the store. Reports need a shared store such as
Redis; with the memory driver every template is reported as unrendered.

Examples:
  tally report                 # Table with a coverage summary
  tally report -o json         # Full report as JSON
  tally report -o csv > out.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.ValidateFlags(cmd); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			op := a.logger.StartOperation("report")
			report, err := a.tracker.Report(cmd.Context())
			if err != nil {
				op.EndWithError(cmd.Context(), err)
				return fmt.Errorf("building report: %w", err)
			}
			op.End(cmd.Context())
			return outputReport(cmd.OutOrStdout(), flags, report)
		},
	}
	flags = AddStandardFlags(cmd, "output")

	return cmd
}

func newRenderedCmd() *cobra.Command {
	var flags *StandardFlags

	cmd := &cobra.Command{
		Use:   "rendered",
		Short: "List templates rendered within the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.ValidateFlags(cmd); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			op := a.logger.StartOperation("rendered")
			ids, err := a.tracker.RenderedTemplates(cmd.Context())
			if err != nil {
				op.EndWithError(cmd.Context(), err)
				return fmt.Errorf("listing rendered templates: %w", err)
			}
			op.End(cmd.Context())
			return outputTemplates(cmd.OutOrStdout(), flags, statusRendered, ids)
		},
	}
	flags = AddStandardFlags(cmd, "output")

	return cmd
}

func newUnrenderedCmd() *cobra.Command {
	var flags *StandardFlags

	cmd := &cobra.Command{
		Use:     "unrendered",
		Aliases: []string{"u"},
		Short:   "List templates not rendered within the retention window",
		Long: `List the templates with no render record. These are candidates for
removal.

Examples:
  tally unrendered             # Table
  tally unrendered -q | xargs  # Identifiers only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.ValidateFlags(cmd); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			op := a.logger.StartOperation("unrendered")
			ids, err := a.tracker.UnrenderedTemplates(cmd.Context())
			if err != nil {
				op.EndWithError(cmd.Context(), err)
				return fmt.Errorf("listing unrendered templates: %w", err)
			}
			op.End(cmd.Context())
			return outputTemplates(cmd.OutOrStdout(), flags, statusUnrendered, ids)
		},
	}
	flags = AddStandardFlags(cmd, "output")

	return cmd
}
