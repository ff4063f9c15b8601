package commands

import (
	"context"
	"errors"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"
	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/shared"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound = errs.New("reservation not found")
	ErrNotOwner            = errs.New("requester does not own this reservation")
	ErrCancelAfterClose    = errs.New("cannot cancel: the lot has already closed")
	ErrAlreadyCancelled    = errs.New("reservation is already cancelled")
)

// Cancel reverses a buyer's contribution before closing. It is the only path
// by which a lot's accumulated quantity can decrease. The reservation and the
// lot are locked in one transaction so a cancellation racing the closing
// threshold resolves cleanly: whichever commits first wins, and a cancel
// arriving after closure is refused.
func (c *reservationCommandsImpl) Cancel(ctx context.Context, reservationID, requesterID uuid.UUID) error {
	_, err := shared.WithDefaultRetry(ctx, c.pool, func(tx db.DBTX) (struct{}, error) {
		return struct{}{}, c.cancelInTx(ctx, tx, reservationID, requesterID)
	})
	if err != nil && errors.Is(err, shared.ErrMaxRetriesExceeded) {
		return errs.Mark(err, ErrLedgerUnavailable)
	}
	return err
}

func (c *reservationCommandsImpl) cancelInTx(ctx context.Context, tx db.DBTX, reservationID, requesterID uuid.UUID) error {
	res, err := c.reservations.FindByIDForUpdate(ctx, tx, reservationID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return ErrReservationNotFound
		}
		return errs.Mark(err, ErrStoreFailure)
	}

	if res.BuyerID() != requesterID {
		return ErrNotOwner
	}

	if res.LotID() != nil {
		// Lock the lot before deciding; a concurrent attach may be closing it
		// this instant, and closure must win over cancellation.
		status, err := c.ledger.LotStatusInTx(ctx, tx, *res.LotID())
		if err != nil {
			return errs.Mark(err, ErrStoreFailure)
		}
		if status != lot.StatusAccumulating {
			return ErrCancelAfterClose
		}
	}

	now := c.clock.Now()
	if err := res.Cancel(requesterID, now); err != nil {
		switch {
		case errors.Is(err, reservation.ErrNotOwner):
			return ErrNotOwner
		case errors.Is(err, reservation.ErrAlreadyCancelled):
			return ErrAlreadyCancelled
		case errors.Is(err, reservation.ErrCancelAfterClose):
			return ErrCancelAfterClose
		default:
			return errs.Mark(err, ErrDomainValidation)
		}
	}

	if err := c.reservations.SetStatus(ctx, tx, res.ID(), reservation.StatusCancelled, now); err != nil {
		return errs.Mark(err, ErrStoreFailure)
	}

	if res.LotID() != nil {
		if _, err := c.ledger.DetachInTx(ctx, tx, *res.LotID(), res.Quantity()); err != nil {
			return errs.Mark(err, ErrStoreFailure)
		}
	}

	return nil
}
