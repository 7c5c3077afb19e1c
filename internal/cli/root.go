package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tejasri1920/Steelworks/internal/config"
	"github.com/tejasri1920/Steelworks/internal/engine"
	"github.com/tejasri1920/Steelworks/internal/store"
	"github.com/tejasri1920/Steelworks/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides STEELWORKS_DB_PATH

	// Config is loaded from the environment before any command runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the steelworks CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "steelworks",
		Short: "Steelworks - lot completeness tracking",
		Long: `Track production, inspection and shipping records per lot and keep
each lot's completeness score consistent with them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			if opts.Database == "" {
				opts.Database = cfg.DBPath
			}

			level, _ := config.ParseLevel(cfg.LogLevel)
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STEELWORKS_DB_PATH or steelworks.db)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewLotCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewCompletenessCommand(opts))
	cmd.AddCommand(NewIncompleteCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// session is an open store with its engine and the resources behind them.
type session struct {
	store   *store.Store
	engine  *engine.Engine
	closers []func() error
}

// Close releases the session in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Error("error closing session", "error", err)
		}
	}
}

// open opens the database and registers the engine on it. Tracing and the
// Redis lot locker are wired when configured.
func (o *RootOptions) open(ctx context.Context) (*session, error) {
	sess := &session{}

	shutdown, err := telemetry.Setup(ctx, telemetry.OptionsFrom(o.Config))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	sess.closers = append(sess.closers, func() error { return shutdown(context.Background()) })

	slog.Debug("opening database", "path", o.Database)
	st, err := store.Open(o.Database)
	if err != nil {
		sess.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	sess.closers = append(sess.closers, st.Close)
	sess.store = st

	engineOpts := []engine.EngineOption{engine.WithLogger(slog.Default())}
	if addr := o.Config.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			sess.Close()
			return nil, WrapExitError(ExitCommandError, "failed to reach redis", err)
		}
		sess.closers = append(sess.closers, rdb.Close)
		engineOpts = append(engineOpts, engine.WithLocker(
			engine.NewRedisLocker(rdb, o.Config.LockTTL, engine.WithLockLogger(slog.Default())),
		))
		slog.Debug("using redis lot locks", "addr", addr, "ttl", o.Config.LockTTL)
	}

	sess.engine = engine.New(st, engineOpts...)
	return sess, nil
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
