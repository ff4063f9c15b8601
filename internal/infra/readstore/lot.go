package readstore

import (
	"context"
	"errors"

	"lotpool/internal/infra"
	"lotpool/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LotReadStore struct {
	pool *pgxpool.Pool
}

func NewLotReadStore(pool *pgxpool.Pool) *LotReadStore {
	return &LotReadStore{pool: pool}
}

func (s *LotReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.LotView, error) {
	var v queries.LotView
	err := s.pool.QueryRow(ctx, `
		SELECT
			l.id, l.product_id, p.name, l.shipping_mode, l.min_quantity,
			l.accumulated, l.status, l.order_finalized,
			l.created_at, l.closed_at, l.processed_at
		FROM lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.id = $1
	`, id).Scan(
		&v.ID, &v.ProductID, &v.ProductName, &v.ShippingMode, &v.MinQuantity,
		&v.Accumulated, &v.Status, &v.OrderFinalized,
		&v.CreatedAt, &v.ClosedAt, &v.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("lot not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to fetch lot view", err)
	}
	return &v, nil
}
