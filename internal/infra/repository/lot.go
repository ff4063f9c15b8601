package repository

import (
	"context"
	"errors"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LotRepository struct{}

func NewLotRepository() *LotRepository {
	return &LotRepository{}
}

const lotColumns = `
	id, product_id, factory_id, shipping_mode, min_quantity, accumulated,
	status, order_finalized, created_at, closed_at, processing_at, processed_at
`

// FindOpenForUpdate locks the open lot for a product and mode. At most one
// exists at a time; AcquireCreateLock serializes the creation side, with the
// partial unique index on accumulating lots as a backstop.
func (r *LotRepository) FindOpenForUpdate(ctx context.Context, dbtx db.DBTX, productID uuid.UUID, mode reservation.ShippingMode) (*lot.Lot, error) {
	row := dbtx.QueryRow(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE product_id = $1 AND shipping_mode = $2
		  AND status IN ('accumulating', 'closed')
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, productID, mode)

	l, err := scanLot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("no open lot for product", err, infra.KindNotFound)
		}
		return nil, classify("failed to fetch open lot", err)
	}
	return l, nil
}

// AcquireCreateLock takes a transaction-scoped advisory lock keyed on the
// product and mode. FindOpenForUpdate has nothing to lock when no open lot
// exists, so two first attaches could otherwise both reach the insert; the
// loser here blocks until the winner commits and then sees its lot.
func (r *LotRepository) AcquireCreateLock(ctx context.Context, dbtx db.DBTX, productID uuid.UUID, mode reservation.ShippingMode) error {
	_, err := dbtx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		productID.String()+"/"+string(mode),
	)
	if err != nil {
		return classify("failed to acquire lot creation lock", err)
	}
	return nil
}

func (r *LotRepository) FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*lot.Lot, error) {
	row := dbtx.QueryRow(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE id = $1
		FOR UPDATE
	`, id)

	l, err := scanLot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("lot not found", err, infra.KindNotFound)
		}
		return nil, classify("failed to fetch lot", err)
	}
	return l, nil
}

func (r *LotRepository) Insert(ctx context.Context, dbtx db.DBTX, l *lot.Lot) error {
	_, err := dbtx.Exec(ctx, `
		INSERT INTO lots (
			id, product_id, factory_id, shipping_mode, min_quantity, accumulated,
			status, order_finalized, created_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		l.ID(), l.ProductID(), l.FactoryID(), l.Mode(), l.MinQuantity(),
		l.Accumulated(), l.Status(), l.OrderFinalized(), l.CreatedAt(), l.ClosedAt(),
	)
	if err != nil {
		return classify("failed to insert lot", err)
	}
	return nil
}

func (r *LotRepository) SaveProgress(ctx context.Context, dbtx db.DBTX, l *lot.Lot) error {
	tag, err := dbtx.Exec(ctx, `
		UPDATE lots
		SET accumulated = $2, status = $3, closed_at = $4
		WHERE id = $1
	`, l.ID(), l.Accumulated(), l.Status(), l.ClosedAt())
	if err != nil {
		return classify("failed to save lot progress", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *LotRepository) Delete(ctx context.Context, dbtx db.DBTX, id uuid.UUID) error {
	tag, err := dbtx.Exec(ctx, `DELETE FROM lots WHERE id = $1`, id)
	if err != nil {
		return classify("failed to delete lot", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *LotRepository) ListEligible(ctx context.Context, dbtx db.DBTX, closedBefore time.Time) ([]*lot.Lot, error) {
	rows, err := dbtx.Query(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE status = 'closed' AND closed_at <= $1
		ORDER BY closed_at
	`, closedBefore)
	if err != nil {
		return nil, classify("failed to list eligible lots", err)
	}
	defer rows.Close()

	var out []*lot.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, classify("failed to scan eligible lot", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to read eligible lots", err)
	}
	return out, nil
}

// ClaimForProcessing performs the closed -> processing transition as a single
// conditional write. Zero rows affected means a concurrent run got there
// first, which the caller treats as a clean skip.
func (r *LotRepository) ClaimForProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := dbtx.Exec(ctx, `
		UPDATE lots
		SET status = 'processing', processing_at = $2, last_error = NULL
		WHERE id = $1 AND status = 'closed'
	`, id, now)
	if err != nil {
		return false, classify("failed to claim lot for processing", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *LotRepository) RevertProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, lastError string) error {
	tag, err := dbtx.Exec(ctx, `
		UPDATE lots
		SET status = 'closed', processing_at = NULL, last_error = $2
		WHERE id = $1 AND status = 'processing'
	`, id, lastError)
	if err != nil {
		return classify("failed to revert lot", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("lot is not processing", nil, infra.KindConflict)
	}
	return nil
}

func (r *LotRepository) CompleteProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, now time.Time) error {
	tag, err := dbtx.Exec(ctx, `
		UPDATE lots
		SET status = 'processed_pending_payment', order_finalized = TRUE, processed_at = $2
		WHERE id = $1 AND status = 'processing' AND order_finalized = FALSE
	`, id, now)
	if err != nil {
		return classify("failed to complete lot", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("lot is not processing or already finalized", nil, infra.KindConflict)
	}
	return nil
}

func (r *LotRepository) RevertStale(ctx context.Context, dbtx db.DBTX, processingBefore time.Time) (int64, error) {
	tag, err := dbtx.Exec(ctx, `
		UPDATE lots
		SET status = 'closed', processing_at = NULL, last_error = 'reverted: processing timed out'
		WHERE status = 'processing' AND processing_at < $1
	`, processingBefore)
	if err != nil {
		return 0, classify("failed to revert stale lots", err)
	}
	return tag.RowsAffected(), nil
}

func scanLot(row pgx.Row) (*lot.Lot, error) {
	var (
		id, productID, factoryID            uuid.UUID
		mode                                reservation.ShippingMode
		minQuantity, accumulated            int32
		status                              lot.Status
		orderFinalized                      bool
		createdAt                           time.Time
		closedAt, processingAt, processedAt *time.Time
	)
	if err := row.Scan(
		&id, &productID, &factoryID, &mode, &minQuantity, &accumulated,
		&status, &orderFinalized, &createdAt, &closedAt, &processingAt, &processedAt,
	); err != nil {
		return nil, err
	}
	return lot.Reconstruct(
		id, productID, factoryID, mode, minQuantity, accumulated,
		status, orderFinalized, createdAt, closedAt, processingAt, processedAt,
	), nil
}
