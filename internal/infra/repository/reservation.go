package repository

import (
	"context"
	"errors"
	"time"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"
	"lotpool/internal/usecase/commands"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ReservationRepository struct{}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{}
}

const reservationColumns = `
	id, buyer_id, product_id, factory_id, lot_id, quantity, shipping_mode,
	subtotal_cents, commission_cents, estimated_shipping_cents,
	final_shipping_cents, total_cents, payment_link, status, created_at, updated_at
`

func (r *ReservationRepository) Create(ctx context.Context, dbtx db.DBTX, res *reservation.Reservation) error {
	_, err := dbtx.Exec(ctx, `
		INSERT INTO reservations (
			id, buyer_id, product_id, factory_id, lot_id, quantity, shipping_mode,
			subtotal_cents, commission_cents, estimated_shipping_cents,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		res.ID(), res.BuyerID(), res.ProductID(), res.FactoryID(), res.LotID(),
		res.Quantity(), res.Mode(),
		res.SubtotalCents(), res.CommissionCents(), res.EstimatedShippingCents(),
		res.Status(), res.CreatedAt(), res.UpdatedAt(),
	)
	if err != nil {
		return classify("failed to insert reservation", err)
	}
	return nil
}

func (r *ReservationRepository) FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*reservation.Reservation, error) {
	row := dbtx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id)

	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("reservation not found", err, infra.KindNotFound)
		}
		return nil, classify("failed to fetch reservation", err)
	}
	return res, nil
}

func (r *ReservationRepository) SetLot(ctx context.Context, dbtx db.DBTX, reservationID, lotID uuid.UUID) error {
	tag, err := dbtx.Exec(ctx, `
		UPDATE reservations
		SET lot_id = $2, updated_at = now()
		WHERE id = $1 AND lot_id IS NULL
	`, reservationID, lotID)
	if err != nil {
		return classify("failed to set reservation lot", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation already attached or missing", nil, infra.KindConflict)
	}
	return nil
}

func (r *ReservationRepository) SetStatus(ctx context.Context, dbtx db.DBTX, reservationID uuid.UUID, status reservation.Status, updatedAt time.Time) error {
	tag, err := dbtx.Exec(ctx, `
		UPDATE reservations
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, reservationID, status, updatedAt)
	if err != nil {
		return classify("failed to update reservation status", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return nil
}

// MarkLotClosed freezes every pending reservation of a lot, run in the same
// transaction as the close so the two are never observed apart.
func (r *ReservationRepository) MarkLotClosed(ctx context.Context, dbtx db.DBTX, lotID uuid.UUID, now time.Time) error {
	_, err := dbtx.Exec(ctx, `
		UPDATE reservations
		SET status = 'lot_closed', updated_at = $2
		WHERE lot_id = $1 AND status = 'pending_lot'
	`, lotID, now)
	if err != nil {
		return classify("failed to mark lot reservations closed", err)
	}
	return nil
}

// SaveFinal writes the batch closer's outcome. It is idempotent across
// re-entries: a row already pushed past notified is left untouched.
func (r *ReservationRepository) SaveFinal(ctx context.Context, dbtx db.DBTX, res *reservation.Reservation) error {
	_, err := dbtx.Exec(ctx, `
		UPDATE reservations
		SET final_shipping_cents = $2,
		    total_cents = $3,
		    payment_link = $4,
		    status = $5,
		    updated_at = $6
		WHERE id = $1 AND status IN ('pending_lot', 'lot_closed', 'notified')
	`,
		res.ID(), res.FinalShippingCents(), res.TotalCents(), res.PaymentLink(),
		res.Status(), res.UpdatedAt(),
	)
	if err != nil {
		return classify("failed to save finalized reservation", err)
	}
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, dbtx db.DBTX, id uuid.UUID) error {
	tag, err := dbtx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return classify("failed to delete reservation", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *ReservationRepository) ExistsActiveForLot(ctx context.Context, dbtx db.DBTX, buyerID, lotID uuid.UUID) (bool, error) {
	var exists bool
	err := dbtx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE buyer_id = $1 AND lot_id = $2 AND status <> 'cancelled'
		)
	`, buyerID, lotID).Scan(&exists)
	if err != nil {
		return false, classify("failed to check for existing reservation", err)
	}
	return exists, nil
}

func (r *ReservationRepository) ListPendingByLot(ctx context.Context, dbtx db.DBTX, lotID uuid.UUID) ([]*commands.PendingReservation, error) {
	rows, err := dbtx.Query(ctx, `
		SELECT
			r.id, r.buyer_id, r.product_id, r.factory_id, r.lot_id, r.quantity,
			r.shipping_mode, r.subtotal_cents, r.commission_cents,
			r.estimated_shipping_cents, r.final_shipping_cents, r.total_cents,
			r.payment_link, r.status, r.created_at, r.updated_at,
			b.name, b.email, b.postal_code, b.street_address,
			f.postal_code, f.street_address,
			p.name
		FROM reservations r
		JOIN buyers b ON b.id = r.buyer_id
		JOIN products p ON p.id = r.product_id
		JOIN factories f ON f.id = r.factory_id
		WHERE r.lot_id = $1 AND r.status IN ('pending_lot', 'lot_closed', 'notified')
		ORDER BY r.created_at
	`, lotID)
	if err != nil {
		return nil, classify("failed to list lot reservations", err)
	}
	defer rows.Close()

	var pending []*commands.PendingReservation
	for rows.Next() {
		var (
			row rowReservation
			p   commands.PendingReservation
		)
		if err := rows.Scan(
			&row.id, &row.buyerID, &row.productID, &row.factoryID, &row.lotID,
			&row.quantity, &row.mode, &row.subtotalCents, &row.commissionCents,
			&row.estimatedShippingCents, &row.finalShippingCents, &row.totalCents,
			&row.paymentLink, &row.status, &row.createdAt, &row.updatedAt,
			&p.BuyerName, &p.BuyerEmail, &p.BuyerPostalCode, &p.BuyerStreet,
			&p.FactoryPostal, &p.FactoryStreet,
			&p.ProductName,
		); err != nil {
			return nil, classify("failed to scan lot reservation", err)
		}
		p.Res = row.toEntity()
		pending = append(pending, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to read lot reservations", err)
	}
	return pending, nil
}

func (r *ReservationRepository) ListUnattached(ctx context.Context, dbtx db.DBTX, olderThan time.Time) ([]*reservation.Reservation, error) {
	rows, err := dbtx.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE lot_id IS NULL AND status = 'pending_lot' AND created_at < $1
		ORDER BY created_at
	`, olderThan)
	if err != nil {
		return nil, classify("failed to list unattached reservations", err)
	}
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, classify("failed to scan unattached reservation", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to read unattached reservations", err)
	}
	return out, nil
}

type rowReservation struct {
	id                     uuid.UUID
	buyerID                uuid.UUID
	productID              uuid.UUID
	factoryID              uuid.UUID
	lotID                  *uuid.UUID
	quantity               int32
	mode                   reservation.ShippingMode
	subtotalCents          int64
	commissionCents        int64
	estimatedShippingCents int64
	finalShippingCents     *int64
	totalCents             *int64
	paymentLink            *string
	status                 reservation.Status
	createdAt              time.Time
	updatedAt              time.Time
}

func (row *rowReservation) toEntity() *reservation.Reservation {
	return reservation.Reconstruct(
		row.id, row.buyerID, row.productID, row.factoryID,
		row.lotID, row.quantity, row.mode,
		row.subtotalCents, row.commissionCents, row.estimatedShippingCents,
		row.finalShippingCents, row.totalCents, row.paymentLink,
		row.status, row.createdAt, row.updatedAt,
	)
}

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var r rowReservation
	if err := row.Scan(
		&r.id, &r.buyerID, &r.productID, &r.factoryID, &r.lotID,
		&r.quantity, &r.mode, &r.subtotalCents, &r.commissionCents,
		&r.estimatedShippingCents, &r.finalShippingCents, &r.totalCents,
		&r.paymentLink, &r.status, &r.createdAt, &r.updatedAt,
	); err != nil {
		return nil, err
	}
	return r.toEntity(), nil
}

// classify maps low-level pgx errors onto repository error kinds.
func classify(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return infra.WrapRepoErr(msg, err, infra.KindDuplicateKey)
		case "23503":
			return infra.WrapRepoErr(msg, err, infra.KindForeignKeyViolated)
		}
	}
	return infra.WrapRepoErr(msg, err)
}
