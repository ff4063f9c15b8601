package queries

import (
	"context"

	"github.com/google/uuid"
)

type LotQueries interface {
	GetByID(ctx context.Context, id uuid.UUID) (*LotView, error)
}

type LotViewRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LotView, error)
}

type lotQueriesImpl struct {
	repo LotViewRepo
}

func NewLotQueries(repo LotViewRepo) LotQueries {
	return &lotQueriesImpl{repo: repo}
}

func (q *lotQueriesImpl) GetByID(ctx context.Context, id uuid.UUID) (*LotView, error) {
	return q.repo.FindByID(ctx, id)
}
