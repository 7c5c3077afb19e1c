package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	DryRun bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair completeness records that drifted from their streams",
		Long: `Compare every lot's stored completeness with its child records and
rewrite the ones that disagree. Drift only happens when the database was
written around the engine, for example by hand.

Exit codes:
  0 - No drift, or all drift repaired
  1 - Drift found with --dry-run

Example:
  steelworks reconcile --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			res, err := sess.engine.Reconcile(ctx, opts.DryRun)
			if err != nil {
				return out.Fail("reconcile failed", err)
			}

			if err := out.Success(res, func(w io.Writer) error {
				fmt.Fprintf(w, "Checked %d lots, %d drifted, %d repaired\n", res.Checked, len(res.Drifted), res.Repaired)
				if len(res.Drifted) > 0 {
					fmt.Fprintf(w, "Drifted lots: %v\n", res.Drifted)
				}
				return nil
			}); err != nil {
				return err
			}

			if opts.DryRun && len(res.Drifted) > 0 {
				return &ExitError{
					Code:     ExitFailure,
					Message:  fmt.Sprintf("%d lot(s) drifted", len(res.Drifted)),
					Reported: opts.Format == "json",
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report drift without repairing it")
	return cmd
}
