package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/pkg/clock"
	"lotpool/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReconcilerConfig struct {
	Grace       time.Duration
	MaxAttempts uint64
	MaxInterval time.Duration
}

// Reconciler sweeps reservations that were durably written but never joined a
// lot because the attach transaction failed. Run re-drives the attach; it
// returns how many orphans were resolved this pass.
type Reconciler interface {
	Run(ctx context.Context) (int, error)
}

type reconcilerImpl struct {
	pool         *pgxpool.Pool
	reservations ReservationRepository
	products     ProductReads
	ledger       *LotLedger
	cfg          ReconcilerConfig
	clock        clock.Clock
}

func NewReconciler(
	pool *pgxpool.Pool,
	reservations ReservationRepository,
	products ProductReads,
	ledger *LotLedger,
	cfg ReconcilerConfig,
	clk clock.Clock,
) Reconciler {
	return &reconcilerImpl{
		pool:         pool,
		reservations: reservations,
		products:     products,
		ledger:       ledger,
		cfg:          cfg,
		clock:        clk,
	}
}

func (r *reconcilerImpl) Run(ctx context.Context) (int, error) {
	// The grace period keeps the sweep from racing an intake whose attach is
	// still in flight.
	cutoff := r.clock.Now().Add(-r.cfg.Grace)

	orphans, err := r.reservations.ListUnattached(ctx, r.pool, cutoff)
	if err != nil {
		return 0, errs.Wrap(err, "failed to list unattached reservations")
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	resolved := 0
	for _, res := range orphans {
		if err := r.reattach(ctx, res); err != nil {
			slog.Warn("orphaned reservation could not be reattached",
				"reservation_id", res.ID(), "error", err)
			continue
		}
		resolved++
	}

	slog.Info("reconciliation pass finished", "orphans", len(orphans), "resolved", resolved)
	return resolved, nil
}

func (r *reconcilerImpl) reattach(ctx context.Context, res *reservation.Reservation) error {
	product, err := r.products.ProductByID(ctx, res.ProductID())
	if err != nil {
		return errs.Wrap(err, "failed to load product for orphan")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		newReattachBackoff(r.cfg.MaxInterval), r.cfg.MaxAttempts), ctx)

	return backoff.Retry(func() error {
		_, err := r.ledger.Attach(ctx, res, product.MinQuantity)
		if err != nil {
			// A duplicate means a parallel reservation by the same buyer won;
			// the attach already deleted this row, so the orphan is gone.
			if errors.Is(err, ErrDuplicateReservation) {
				slog.Info("orphan removed as duplicate of an existing reservation",
					"reservation_id", res.ID())
				return nil
			}
			return err
		}
		return nil
	}, policy)
}

func newReattachBackoff(maxInterval time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = maxInterval
	return b
}
