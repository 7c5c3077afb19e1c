package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tejasri1920/Steelworks/internal/batch"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Atomic bool
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply a batch file of lots and record mutations",
		Long: `Apply a YAML, JSON or CUE batch file. The file is checked against the
batch schema before anything is written.

Without --atomic each item commits on its own and the run stops at the first
failing item. With --atomic (or "atomic: true" in the file) the whole batch
commits or rolls back as one unit of work.

Example:
  steelworks apply ./batch.yaml --atomic`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := batch.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid batch file", err)
			}
			opts.formatter(cmd).VerboseLog("loaded %d lots, %d mutations, %d lot deletions",
				len(f.Lots), len(f.Mutations), len(f.DeleteLots))

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			sum, err := batch.Apply(ctx, sess.engine, f, opts.Atomic)
			if err != nil {
				if opts.Format != "json" {
					writeSummary(out.Writer, sum)
				}
				return out.Fail("batch failed", err)
			}
			return out.Success(sum, func(w io.Writer) error {
				writeSummary(w, sum)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Atomic, "atomic", false, "apply the whole batch in one transaction")
	return cmd
}

func writeSummary(w io.Writer, sum batch.Summary) {
	fmt.Fprintf(w, "Lots created: %d\n", sum.LotsCreated)
	fmt.Fprintf(w, "Records inserted: %d\n", len(sum.Inserted))
	for _, ins := range sum.Inserted {
		fmt.Fprintf(w, "  %s %d -> lot %d\n", ins.Stream, ins.ID, ins.LotID)
	}
	fmt.Fprintf(w, "Records updated: %d\n", sum.Updated)
	fmt.Fprintf(w, "Records deleted: %d\n", sum.Deleted)
	fmt.Fprintf(w, "Lots deleted: %d\n", sum.LotsDeleted)
}
