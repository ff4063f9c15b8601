package queries

import (
	"context"

	"lotpool/internal/pkg/errs"

	"github.com/google/uuid"
)

var ErrNotReservationOwner = errs.New("reservation belongs to another buyer")

type ReservationQueries interface {
	GetByID(ctx context.Context, actorID, id uuid.UUID) (*ReservationView, error)
	// GetByIDSystem skips the ownership check; for internal callers only.
	GetByIDSystem(ctx context.Context, id uuid.UUID) (*ReservationView, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]*ReservationListItem, error)
}

type ReservationViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ReservationView, error)
	FindByBuyerID(ctx context.Context, buyerID uuid.UUID, limit int32) ([]*ReservationListItem, error)
}

type reservationQueriesImpl struct {
	repo ReservationViewRepo
}

func NewReservationQueries(repo ReservationViewRepo) ReservationQueries {
	return &reservationQueriesImpl{repo: repo}
}

func (q *reservationQueriesImpl) GetByID(ctx context.Context, actorID, id uuid.UUID) (*ReservationView, error) {
	view, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.BuyerID != actorID {
		return nil, ErrNotReservationOwner
	}
	return view, nil
}

func (q *reservationQueriesImpl) GetByIDSystem(ctx context.Context, id uuid.UUID) (*ReservationView, error) {
	return q.repo.FindByID(ctx, id)
}

func (q *reservationQueriesImpl) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]*ReservationListItem, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.repo.FindByBuyerID(ctx, buyerID, int32(limit))
}
