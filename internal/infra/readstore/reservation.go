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

// ReservationReadStore serves the read side straight off the pool; view
// queries never join a command transaction.
type ReservationReadStore struct {
	pool *pgxpool.Pool
}

func NewReservationReadStore(pool *pgxpool.Pool) *ReservationReadStore {
	return &ReservationReadStore{pool: pool}
}

func (s *ReservationReadStore) FindByID(ctx context.Context, id uuid.UUID) (*queries.ReservationView, error) {
	var v queries.ReservationView
	err := s.pool.QueryRow(ctx, `
		SELECT
			r.id, r.buyer_id, b.name, b.email,
			r.product_id, p.name, r.lot_id, r.quantity, r.shipping_mode,
			r.subtotal_cents, r.commission_cents, r.estimated_shipping_cents,
			r.final_shipping_cents, r.total_cents, r.payment_link,
			r.status, r.created_at, r.updated_at
		FROM reservations r
		JOIN buyers b ON b.id = r.buyer_id
		JOIN products p ON p.id = r.product_id
		WHERE r.id = $1
	`, id).Scan(
		&v.ID, &v.BuyerID, &v.BuyerName, &v.BuyerEmail,
		&v.ProductID, &v.ProductName, &v.LotID, &v.Quantity, &v.ShippingMode,
		&v.SubtotalCents, &v.CommissionCents, &v.EstimatedShippingCents,
		&v.FinalShippingCents, &v.TotalCents, &v.PaymentLink,
		&v.Status, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("reservation not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to fetch reservation view", err)
	}
	return &v, nil
}

func (s *ReservationReadStore) FindByBuyerID(ctx context.Context, buyerID uuid.UUID, limit int32) ([]*queries.ReservationListItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			r.id, r.product_id, p.name, r.lot_id, r.quantity,
			r.shipping_mode, r.status, r.created_at
		FROM reservations r
		JOIN products p ON p.id = r.product_id
		WHERE r.buyer_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`, buyerID, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list buyer reservations", err)
	}
	defer rows.Close()

	var items []*queries.ReservationListItem
	for rows.Next() {
		var item queries.ReservationListItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.ProductName, &item.LotID,
			&item.Quantity, &item.ShippingMode, &item.Status, &item.CreatedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan reservation list item", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read buyer reservations", err)
	}
	return items, nil
}
