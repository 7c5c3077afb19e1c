package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database if it does not exist and apply the schema
and any pending migrations. Safe to run more than once.

Example:
  steelworks init --db ./steelworks.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			sess, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := rootOpts.formatter(cmd)
			if err := sess.store.Ping(ctx); err != nil {
				return out.Fail("database not ready", err)
			}
			data := map[string]string{"database": rootOpts.Database}
			return out.Success(data, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Database ready: %s\n", rootOpts.Database)
				return err
			})
		},
	}
}
