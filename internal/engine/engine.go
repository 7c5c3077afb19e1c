package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

const tracerName = "github.com/tejasri1920/Steelworks/internal/engine"

// Engine keeps lot completeness consistent with the child streams.
//
// Thread-safety model:
//   - ObserveMutation(): called by the store inside a unit of work
//   - Recompute(), Reconcile(), DeleteLot(): safe from any goroutine
//
// INVARIANTS:
//   - The only write recompute makes is the completeness upsert
//   - A lot is locked at most once per unit of work
type Engine struct {
	store  *store.Store
	locker store.LotLocker
	logger *slog.Logger
	tracer trace.Tracer
	clock  *Clock
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLocker sets the per-lot locker.
//
// Default: an in-process MutexLocker.
// Use a RedisLocker when several processes write the same database.
func WithLocker(l store.LotLocker) EngineOption {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer for recompute spans. Default: the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an Engine and registers it as the store's observer. From then
// on every child-stream write through s keeps completeness in step.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  s,
		locker: NewMutexLocker(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		clock:  NewClock(),
	}

	for _, opt := range opts {
		opt(e)
	}

	s.SetObserver(e)
	return e
}

// Store returns the store the engine observes.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Locker returns the per-lot locker every unit of work of this engine uses.
func (e *Engine) Locker() store.LotLocker {
	return e.locker
}

// Recomputations returns how many recomputes have run.
func (e *Engine) Recomputations() int64 {
	return e.clock.Current()
}

// ObserveMutation implements store.Observer.
//
// Every lot the mutation affects is locked, in ascending id order, and then
// recomputed once. A mutation with no resolvable lot is ignored.
func (e *Engine) ObserveMutation(ctx context.Context, tx *store.Tx, m lot.Mutation) error {
	lots := m.AffectedLots()
	if len(lots) == 0 {
		e.logger.Warn("mutation has no resolvable lot",
			"unit", m.UnitID, "stream", m.Stream, "op", m.Op)
		return nil
	}

	for _, lotID := range lots {
		if err := tx.LockLot(ctx, lotID, e.locker); err != nil {
			return NewLockError(lotID, tx.UnitID(), err)
		}
	}

	for _, lotID := range lots {
		if _, _, err := e.recompute(ctx, tx, lotID); err != nil {
			return NewRecomputeError(lotID, tx.UnitID(), err)
		}
	}
	return nil
}

// Recompute rebuilds the completeness record of one lot in its own unit of
// work and returns the stored record.
func (e *Engine) Recompute(ctx context.Context, lotID int64) (lot.Completeness, error) {
	var rec lot.Completeness
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.LockLot(ctx, lotID, e.locker); err != nil {
			return NewLockError(lotID, tx.UnitID(), err)
		}
		if _, err := tx.GetLot(ctx, lotID); err != nil {
			return err
		}
		var err error
		if rec, _, err = e.recompute(ctx, tx, lotID); err != nil {
			return NewRecomputeError(lotID, tx.UnitID(), err)
		}
		return nil
	})
	return rec, err
}

// DeleteLot deletes a lot while holding its lock, so it cannot interleave
// with a recompute of the same lot.
func (e *Engine) DeleteLot(ctx context.Context, lotID int64) error {
	return e.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.LockLot(ctx, lotID, e.locker); err != nil {
			return NewLockError(lotID, tx.UnitID(), err)
		}
		return tx.DeleteLot(ctx, lotID)
	})
}

// recompute derives the completeness of lotID from the child streams and
// upserts it. The bool is false when the lot no longer exists, in which case
// nothing is written.
func (e *Engine) recompute(ctx context.Context, tx *store.Tx, lotID int64) (lot.Completeness, bool, error) {
	seq := e.clock.Next()
	ctx, span := e.tracer.Start(ctx, "engine.recompute",
		trace.WithAttributes(
			attribute.Int64("lot.id", lotID),
			attribute.Int64("recompute.seq", seq),
			attribute.String("unit.id", tx.UnitID()),
		),
	)
	defer span.End()

	exists, err := tx.LotExists(ctx, lotID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lot lookup failed")
		return lot.Completeness{}, false, err
	}
	if !exists {
		e.logger.Info("lot vanished before recompute, skipping",
			"lot", lotID, "seq", seq, "unit", tx.UnitID())
		return lot.Completeness{}, false, nil
	}

	flags, err := presence(ctx, tx, lotID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence check failed")
		return lot.Completeness{}, false, err
	}

	rec := lot.NewCompleteness(lotID, flags)
	if err := tx.UpsertCompleteness(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return lot.Completeness{}, false, err
	}

	span.SetAttributes(attribute.Int("completeness.overall", rec.Overall))
	e.logger.Debug("recomputed lot completeness",
		"lot", lotID,
		"seq", seq,
		"unit", tx.UnitID(),
		"production", flags.Production,
		"inspection", flags.Inspection,
		"shipping", flags.Shipping,
		"overall", rec.Overall,
	)
	return rec, true, nil
}

// presence runs one existence check per stream.
func presence(ctx context.Context, tx *store.Tx, lotID int64) (lot.Flags, error) {
	var f lot.Flags
	for _, s := range lot.Streams {
		ok, err := tx.StreamExists(ctx, s, lotID)
		if err != nil {
			return lot.Flags{}, err
		}
		f.Set(s, ok)
	}
	return f, nil
}
