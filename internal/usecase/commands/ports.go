package commands

import (
	"context"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repositories take an explicit db.DBTX so the commands decide transaction
// boundaries; implementations live in internal/infra/repository.

type ReservationRepository interface {
	Create(ctx context.Context, dbtx db.DBTX, res *reservation.Reservation) error
	FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*reservation.Reservation, error)
	SetLot(ctx context.Context, dbtx db.DBTX, reservationID, lotID uuid.UUID) error
	SetStatus(ctx context.Context, dbtx db.DBTX, reservationID uuid.UUID, status reservation.Status, updatedAt time.Time) error
	// MarkLotClosed freezes a lot's pending reservations in the same
	// transaction as the close itself.
	MarkLotClosed(ctx context.Context, dbtx db.DBTX, lotID uuid.UUID, now time.Time) error
	SaveFinal(ctx context.Context, dbtx db.DBTX, res *reservation.Reservation) error
	Delete(ctx context.Context, dbtx db.DBTX, id uuid.UUID) error
	ExistsActiveForLot(ctx context.Context, dbtx db.DBTX, buyerID, lotID uuid.UUID) (bool, error)
	ListPendingByLot(ctx context.Context, dbtx db.DBTX, lotID uuid.UUID) ([]*PendingReservation, error)
	ListUnattached(ctx context.Context, dbtx db.DBTX, olderThan time.Time) ([]*reservation.Reservation, error)
}

type LotRepository interface {
	FindOpenForUpdate(ctx context.Context, dbtx db.DBTX, productID uuid.UUID, mode reservation.ShippingMode) (*lot.Lot, error)
	// AcquireCreateLock serializes first attaches for a product and mode,
	// covering the window where no open lot row exists yet to lock. The lock
	// is transaction-scoped and released on commit or rollback.
	AcquireCreateLock(ctx context.Context, dbtx db.DBTX, productID uuid.UUID, mode reservation.ShippingMode) error
	FindByIDForUpdate(ctx context.Context, dbtx db.DBTX, id uuid.UUID) (*lot.Lot, error)
	Insert(ctx context.Context, dbtx db.DBTX, l *lot.Lot) error
	SaveProgress(ctx context.Context, dbtx db.DBTX, l *lot.Lot) error
	Delete(ctx context.Context, dbtx db.DBTX, id uuid.UUID) error
	ListEligible(ctx context.Context, dbtx db.DBTX, closedBefore time.Time) ([]*lot.Lot, error)
	// ClaimForProcessing is the closed -> processing CAS; false means another
	// run already owns the lot.
	ClaimForProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, now time.Time) (bool, error)
	RevertProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, lastError string) error
	CompleteProcessing(ctx context.Context, dbtx db.DBTX, id uuid.UUID, now time.Time) error
	// RevertStale recovers lots whose run died after claiming them.
	RevertStale(ctx context.Context, dbtx db.DBTX, processingBefore time.Time) (int64, error)
}

// PendingReservation is the batch closer's working unit: the reservation plus
// the contact data the zone split and notification need, loaded in one query.
type PendingReservation struct {
	Res             *reservation.Reservation
	BuyerName       string
	BuyerEmail      string
	BuyerPostalCode string
	BuyerStreet     string
	FactoryPostal   string
	FactoryStreet   string
	ProductName     string
}

// Snapshots for command-side reads.

type BuyerSnapshot struct {
	ID            uuid.UUID
	Name          string
	Email         string
	PostalCode    string
	StreetAddress string
}

type ProductSnapshot struct {
	ID            uuid.UUID
	FactoryID     uuid.UUID
	Name          string
	PriceCents    int64
	MinQuantity   int32
	FactoryPostal string
	FactoryStreet string
}

type BuyerReads interface {
	BuyerByID(ctx context.Context, id uuid.UUID) (*BuyerSnapshot, error)
}

type ProductReads interface {
	ProductByID(ctx context.Context, id uuid.UUID) (*ProductSnapshot, error)
}

// External collaborators; implementations live in internal/infra/gateway.

type Address struct {
	PostalCode    string
	StreetAddress string
}

type DistanceService interface {
	DistanceKm(ctx context.Context, from, to Address) (float64, error)
}

type PaymentLinkRequest struct {
	AmountCents     int64
	ReservationID   uuid.UUID
	LotID           uuid.UUID
	BuyerID         uuid.UUID
	BuyerEmail      string
	SubtotalCents   int64
	ShippingCents   int64
	CommissionCents int64
}

type PaymentGateway interface {
	// CreatePaymentLink must embed enough metadata that a later webhook can
	// finalize the exact reservation without re-deriving state. The
	// reservation ID doubles as the idempotency key.
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (string, error)
}

type Notification struct {
	Email       string
	Name        string
	ProductName string
	TotalCents  int64
	PaymentLink string
}

type Notifier interface {
	// SendBatch dispatches one logical batch; implementations chunk to the
	// provider's per-call limit.
	SendBatch(ctx context.Context, msgs []Notification) error
}

type CommissionRates interface {
	RateFor(ctx context.Context, buyerID uuid.UUID) (decimal.Decimal, error)
}
