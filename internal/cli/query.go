package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/report"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// NewCompletenessCommand creates the completeness command.
func NewCompletenessCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "completeness <lot-id>",
		Short: "Show the completeness record of a lot",
		Long: `Show the stored completeness of a lot. A lot that has never been
recomputed has no record yet and reports zero.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "lot id")
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			sess, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := rootOpts.formatter(cmd)
			if _, err := sess.store.GetLot(ctx, id); err != nil {
				return out.Fail("failed to read lot", err)
			}
			rec, found, err := sess.store.GetCompleteness(ctx, id)
			if err != nil {
				return out.Fail("failed to read completeness", err)
			}
			if !found {
				rec = lot.NewCompleteness(id, lot.Flags{})
			}
			return out.Success(rec, func(w io.Writer) error {
				return report.WriteCompleteness(w, []lot.Completeness{rec})
			})
		},
	}
}

// IncompleteOptions holds flags for the incomplete command.
type IncompleteOptions struct {
	*RootOptions
	Threshold int
}

// NewIncompleteCommand creates the incomplete command.
func NewIncompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IncompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "incomplete",
		Short: "List lots below a completeness threshold",
		Long: `List lots whose completeness is below --threshold, lowest first.
Lots without a stored record count as zero.

Example:
  steelworks incomplete --threshold 66`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Threshold < 1 || opts.Threshold > 100 {
				return NewExitError(ExitCommandError, fmt.Sprintf("--threshold must be between 1 and 100, got %d", opts.Threshold))
			}

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			recs, err := sess.store.ListIncomplete(ctx, opts.Threshold)
			if err != nil {
				return out.Fail("failed to list incomplete lots", err)
			}
			return out.Success(recs, func(w io.Writer) error {
				return report.WriteCompleteness(w, recs)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Threshold, "threshold", 100, "report lots scoring below this value (1-100)")
	return cmd
}

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	LotID int64
	From  string
	To    string
	XLSX  string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report lots with their completeness and child records",
		Long: `Report lots joined with their completeness and child records, filtered
by lot id and by an inclusive start date range. Lots with no child records
in the range still appear.

Examples:
  steelworks report --from 2024-05-01 --to 2024-05-31
  steelworks report --lot 42 --format json
  steelworks report --xlsx completeness.xlsx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ReportFilter{LotID: opts.LotID}
			var err error
			if filter.From, err = optionalDate(opts.From); err != nil {
				return WrapExitError(ExitCommandError, "invalid --from", err)
			}
			if filter.To, err = optionalDate(opts.To); err != nil {
				return WrapExitError(ExitCommandError, "invalid --to", err)
			}
			if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
				return NewExitError(ExitCommandError, "--to is before --from")
			}

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			rows, err := sess.store.Report(ctx, filter)
			if err != nil {
				return out.Fail("failed to build report", err)
			}

			if opts.XLSX != "" {
				if err := writeXLSXFile(opts.XLSX, rows); err != nil {
					return WrapExitError(ExitCommandError, "failed to write workbook", err)
				}
				data := map[string]any{"xlsx": opts.XLSX, "lots": len(rows)}
				return out.Success(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Wrote %d lots to %s\n", len(rows), opts.XLSX)
					return err
				})
			}
			return out.Success(rows, func(w io.Writer) error {
				return report.WriteText(w, rows)
			})
		},
	}

	cmd.Flags().Int64Var(&opts.LotID, "lot", 0, "only this lot")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest start date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest start date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "write an xlsx workbook to this path instead")
	return cmd
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return lot.ParseDate(s)
}

func writeXLSXFile(path string, rows []store.LotReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteXLSX(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
