package commands

import (
	"context"
	"errors"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"
	"lotpool/internal/pkg/clock"
	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDuplicateReservation = errs.New("buyer already holds an active reservation in this lot")
	ErrLedgerUnavailable    = errs.New("lot ledger temporarily unavailable")
)

type AttachResult struct {
	LotID       uuid.UUID
	Closed      bool
	Accumulated int32
	MinQuantity int32
}

// LotLedger is the single writer of accumulated quantities. Attach and Detach
// each run as one row-locked transaction; concurrent callers against the same
// lot serialize on the row lock and conflict losers retry against the
// post-commit state.
type LotLedger struct {
	pool         *pgxpool.Pool
	lots         LotRepository
	reservations ReservationRepository
	clock        clock.Clock
}

func NewLotLedger(pool *pgxpool.Pool, lots LotRepository, reservations ReservationRepository, clk clock.Clock) *LotLedger {
	return &LotLedger{
		pool:         pool,
		lots:         lots,
		reservations: reservations,
		clock:        clk,
	}
}

// Attach joins a durably-written reservation to the open lot for its product
// and shipping mode, creating the lot if none exists. The reservation row is
// deleted again if the buyer turns out to already hold a spot in the lot.
func (l *LotLedger) Attach(ctx context.Context, res *reservation.Reservation, minQuantity int32) (*AttachResult, error) {
	result, err := shared.WithDefaultRetry(ctx, l.pool, func(tx db.DBTX) (*AttachResult, error) {
		return l.attachInTx(ctx, tx, res, minQuantity)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReservation) {
			return nil, err
		}
		if errors.Is(err, shared.ErrMaxRetriesExceeded) {
			return nil, errs.Mark(err, ErrLedgerUnavailable)
		}
		return nil, err
	}
	return result, nil
}

func (l *LotLedger) attachInTx(ctx context.Context, tx db.DBTX, res *reservation.Reservation, minQuantity int32) (*AttachResult, error) {
	now := l.clock.Now()

	open, err := l.lots.FindOpenForUpdate(ctx, tx, res.ProductID(), res.Mode())
	if err != nil {
		if !infra.IsKind(err, infra.KindNotFound) {
			return nil, err
		}
		// With no row to lock, two first attaches can both reach the insert.
		// Serialize creation on an advisory lock and look again; a racing
		// winner's lot becomes visible once its transaction commits.
		if err := l.lots.AcquireCreateLock(ctx, tx, res.ProductID(), res.Mode()); err != nil {
			return nil, err
		}
		open, err = l.lots.FindOpenForUpdate(ctx, tx, res.ProductID(), res.Mode())
		if err != nil {
			if !infra.IsKind(err, infra.KindNotFound) {
				return nil, err
			}
			return l.openLotInTx(ctx, tx, res, minQuantity, now)
		}
	}

	dup, err := l.reservations.ExistsActiveForLot(ctx, tx, res.BuyerID(), open.ID())
	if err != nil {
		return nil, err
	}
	if dup {
		// The intake already wrote the reservation row; take it back out in
		// the same transaction so no orphan survives the conflict.
		if err := l.reservations.Delete(ctx, tx, res.ID()); err != nil {
			return nil, err
		}
		return nil, ErrDuplicateReservation
	}

	if _, err := open.Apply(res.Quantity(), now); err != nil {
		return nil, err
	}
	if err := l.lots.SaveProgress(ctx, tx, open); err != nil {
		return nil, err
	}
	if err := l.reservations.SetLot(ctx, tx, res.ID(), open.ID()); err != nil {
		return nil, err
	}
	if open.Status() == lot.StatusClosed {
		if err := l.reservations.MarkLotClosed(ctx, tx, open.ID(), now); err != nil {
			return nil, err
		}
	}

	return &AttachResult{
		LotID:       open.ID(),
		Closed:      open.Status() == lot.StatusClosed,
		Accumulated: open.Accumulated(),
		MinQuantity: open.MinQuantity(),
	}, nil
}

// openLotInTx creates the first lot for a product and mode; the caller holds
// the creation lock. A single oversized reservation may open it already closed.
func (l *LotLedger) openLotInTx(ctx context.Context, tx db.DBTX, res *reservation.Reservation, minQuantity int32, now time.Time) (*AttachResult, error) {
	created, err := lot.NewLot(res.ProductID(), res.FactoryID(), res.Mode(), minQuantity, res.Quantity(), now)
	if err != nil {
		return nil, err
	}
	if err := l.lots.Insert(ctx, tx, created); err != nil {
		return nil, err
	}
	if err := l.reservations.SetLot(ctx, tx, res.ID(), created.ID()); err != nil {
		return nil, err
	}
	if created.Status() == lot.StatusClosed {
		if err := l.reservations.MarkLotClosed(ctx, tx, created.ID(), now); err != nil {
			return nil, err
		}
	}
	return &AttachResult{
		LotID:       created.ID(),
		Closed:      created.Status() == lot.StatusClosed,
		Accumulated: created.Accumulated(),
		MinQuantity: created.MinQuantity(),
	}, nil
}

type DetachResult struct {
	Deleted bool
}

// DetachInTx removes a cancelled reservation's quantity inside the caller's
// transaction. A lot drained to zero is deleted, never persisted at zero.
func (l *LotLedger) DetachInTx(ctx context.Context, tx db.DBTX, lotID uuid.UUID, quantity int32) (*DetachResult, error) {
	locked, err := l.lots.FindByIDForUpdate(ctx, tx, lotID)
	if err != nil {
		return nil, err
	}

	empty, err := locked.Release(quantity)
	if err != nil {
		return nil, err
	}

	if empty {
		if err := l.lots.Delete(ctx, tx, locked.ID()); err != nil {
			return nil, err
		}
		return &DetachResult{Deleted: true}, nil
	}

	if err := l.lots.SaveProgress(ctx, tx, locked); err != nil {
		return nil, err
	}
	return &DetachResult{Deleted: false}, nil
}

// LotStatusInTx exposes the locked lot's status for cancellation's
// precondition check without a second query path.
func (l *LotLedger) LotStatusInTx(ctx context.Context, tx db.DBTX, lotID uuid.UUID) (lot.Status, error) {
	locked, err := l.lots.FindByIDForUpdate(ctx, tx, lotID)
	if err != nil {
		return "", err
	}
	return locked.Status(), nil
}
