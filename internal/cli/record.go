package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// RecordOptions holds flags for record add and update.
type RecordOptions struct {
	*RootOptions
	LotID     int64
	Line      string
	Quantity  string
	Result    string
	Inspector string
	Status    string
	Carrier   string
}

// NewRecordCommand creates the record command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Write production, inspection and shipping records",
		Long: `Add, update and delete child records. Every write recomputes the
completeness of the lots it touches in the same transaction.`,
	}
	cmd.AddCommand(newRecordAddCommand(rootOpts))
	cmd.AddCommand(newRecordUpdateCommand(rootOpts))
	cmd.AddCommand(newRecordDeleteCommand(rootOpts))
	return cmd
}

func addRecordFlags(cmd *cobra.Command, opts *RecordOptions) {
	cmd.Flags().Int64Var(&opts.LotID, "lot", 0, "lot id")
	cmd.Flags().StringVar(&opts.Line, "line", "", "production line")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "", "production quantity (decimal)")
	cmd.Flags().StringVar(&opts.Result, "result", "", "inspection result")
	cmd.Flags().StringVar(&opts.Inspector, "inspector", "", "inspector name")
	cmd.Flags().StringVar(&opts.Status, "status", "", "shipping status")
	cmd.Flags().StringVar(&opts.Carrier, "carrier", "", "carrier")
}

func newRecordAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <stream>",
		Short: "Insert a child record",
		Long: `Insert a record into one of the streams: production, inspection or
shipping.

Example:
  steelworks record add production --lot 42 --line L1 --quantity 120.5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := lot.ParseStream(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid stream", err)
			}
			if opts.LotID <= 0 {
				return NewExitError(ExitCommandError, "--lot is required")
			}
			row, err := opts.overlay(cmd.Flags().Changed, emptyRow(stream, 0, opts.LotID))
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var inserted lot.Row
			err = sess.store.Update(ctx, func(tx *store.Tx) error {
				inserted, err = tx.InsertRecord(ctx, row)
				return err
			})
			out := opts.formatter(cmd)
			if err != nil {
				return out.Fail("failed to add record", err)
			}
			return out.Success(inserted, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Added %s record %d to lot %d\n", stream, inserted.RecordID(), inserted.RecordLot())
				return err
			})
		},
	}
	addRecordFlags(cmd, opts)
	return cmd
}

func newRecordUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <stream> <id>",
		Short: "Update a child record",
		Long: `Update the fields given as flags. --lot moves the record to another lot,
which recomputes both lots.

Example:
  steelworks record update shipping 7 --status delivered`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := lot.ParseStream(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid stream", err)
			}
			id, err := parseID(args[1], "record id")
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			sess, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := opts.formatter(cmd)
			var updated lot.Row
			err = sess.store.Update(ctx, func(tx *store.Tx) error {
				current, err := tx.GetRecord(ctx, stream, id)
				if err != nil {
					return err
				}
				row, err := opts.overlay(cmd.Flags().Changed, current)
				if err != nil {
					return err
				}
				updated, err = tx.UpdateRecord(ctx, row)
				return err
			})
			if err != nil {
				if GetExitCode(err) == ExitCommandError && !IsReported(err) {
					return err
				}
				return out.Fail("failed to update record", err)
			}
			return out.Success(updated, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated %s record %d (lot %d)\n", stream, id, updated.RecordLot())
				return err
			})
		},
	}
	addRecordFlags(cmd, opts)
	return cmd
}

func newRecordDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <stream> <id>",
		Short:         "Delete a child record",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := lot.ParseStream(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid stream", err)
			}
			id, err := parseID(args[1], "record id")
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			sess, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var deleted lot.Row
			err = sess.store.Update(ctx, func(tx *store.Tx) error {
				deleted, err = tx.DeleteRecord(ctx, stream, id)
				return err
			})
			out := rootOpts.formatter(cmd)
			if err != nil {
				return out.Fail("failed to delete record", err)
			}
			return out.Success(deleted, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %s record %d from lot %d\n", stream, id, deleted.RecordLot())
				return err
			})
		},
	}
}

func emptyRow(stream lot.Stream, id, lotID int64) lot.Row {
	switch stream {
	case lot.StreamProduction:
		return lot.ProductionRecord{ID: id, LotID: lotID}
	case lot.StreamInspection:
		return lot.InspectionRecord{ID: id, LotID: lotID}
	default:
		return lot.ShippingRecord{ID: id, LotID: lotID}
	}
}

// overlay applies the flags set on the command line to base. Flags that do
// not belong to the record's stream are rejected.
func (o *RecordOptions) overlay(changed func(name string) bool, base lot.Row) (lot.Row, error) {
	allowed := map[lot.Stream][]string{
		lot.StreamProduction: {"line", "quantity"},
		lot.StreamInspection: {"result", "inspector"},
		lot.StreamShipping:   {"status", "carrier"},
	}
	for _, fields := range allowed {
		for _, name := range fields {
			if changed(name) && !contains(allowed[base.Stream()], name) {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s does not apply to %s records", name, base.Stream()))
			}
		}
	}

	switch r := base.(type) {
	case lot.ProductionRecord:
		if changed("lot") {
			r.LotID = o.LotID
		}
		if changed("line") {
			r.Line = o.Line
		}
		if changed("quantity") {
			q, err := decimal.NewFromString(o.Quantity)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid --quantity", err)
			}
			r.Quantity = q
		}
		return r, nil
	case lot.InspectionRecord:
		if changed("lot") {
			r.LotID = o.LotID
		}
		if changed("result") {
			r.Result = o.Result
		}
		if changed("inspector") {
			r.Inspector = o.Inspector
		}
		return r, nil
	case lot.ShippingRecord:
		if changed("lot") {
			r.LotID = o.LotID
		}
		if changed("status") {
			r.Status = o.Status
		}
		if changed("carrier") {
			r.Carrier = o.Carrier
		}
		return r, nil
	}
	return nil, fmt.Errorf("unsupported record type %T", base)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
