package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// LotOptions holds flags for lot create.
type LotOptions struct {
	*RootOptions
	Code  string
	Start string
	End   string
}

// NewLotCommand creates the lot command group.
func NewLotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lot",
		Short: "Create and delete lots",
	}
	cmd.AddCommand(newLotCreateCommand(rootOpts))
	cmd.AddCommand(newLotDeleteCommand(rootOpts))
	return cmd
}

func newLotCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <lot-id>",
		Short: "Create a lot",
		Long: `Create a lot. A lot id of 0 lets the database assign one.

Example:
  steelworks lot create 42 --start 2024-05-01 --end 2024-05-03 --code HR-42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "lot id")
			if err != nil {
				return err
			}
			start, err := lot.ParseDate(opts.Start)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --start", err)
			}
			end, err := lot.ParseDate(opts.End)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --end", err)
			}

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var created lot.Lot
			err = sess.store.Update(ctx, func(tx *store.Tx) error {
				created, err = tx.CreateLot(ctx, lot.Lot{ID: id, Code: opts.Code, StartDate: start, EndDate: end})
				return err
			})
			out := opts.formatter(cmd)
			if err != nil {
				return out.Fail("failed to create lot", err)
			}
			return out.Success(created, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created lot %d (%s to %s)\n",
					created.ID, lot.FormatDate(created.StartDate), lot.FormatDate(created.EndDate))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "lot code")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end date YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func newLotDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <lot-id>",
		Short: "Delete a lot with no child records",
		Long: `Delete a lot. The delete is refused while any production, inspection
or shipping record still references the lot.`,
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
			if err := sess.engine.DeleteLot(ctx, id); err != nil {
				return out.Fail("failed to delete lot", err)
			}
			return out.Success(map[string]int64{"deleted": id}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted lot %d\n", id)
				return err
			})
		},
	}
}

// parseID parses a non-negative integer id argument.
func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, arg))
	}
	return id, nil
}
