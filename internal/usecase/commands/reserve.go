package commands

import (
	"context"
	"fmt"
	"log/slog"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/domain/shipping"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"
	"lotpool/internal/pkg/clock"
	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrBuyerNotFound    = errs.New("buyer not found")
	ErrProductNotFound  = errs.New("product not found")
	ErrMissingAddress   = errs.New("buyer has no registered delivery address")
	ErrInvalidQuantity  = errs.New("quantity must be greater than zero")
	ErrInvalidMode      = errs.New("invalid shipping mode")
	ErrDomainValidation = errs.New("domain validation error")
	ErrStoreFailure     = errs.New("store operation failed")
)

type ReserveParams struct {
	BuyerID      uuid.UUID
	ProductID    uuid.UUID
	Quantity     int32
	ShippingMode reservation.ShippingMode
}

type ReserveResult struct {
	ReservationID uuid.UUID
	LotID         uuid.UUID
	Closed        bool
	Message       string
}

type ReservationCommands interface {
	Reserve(ctx context.Context, params ReserveParams) (*ReserveResult, error)
	Cancel(ctx context.Context, reservationID, requesterID uuid.UUID) error
}

type reservationCommandsImpl struct {
	pool         *pgxpool.Pool
	reservations ReservationRepository
	buyers       BuyerReads
	products     ProductReads
	ledger       *LotLedger
	distance     DistanceService
	commissions  CommissionRates
	pricing      shipping.Pricing
	defaultRate  decimal.Decimal
	clock        clock.Clock
}

func NewReservationCommands(
	pool *pgxpool.Pool,
	reservations ReservationRepository,
	buyers BuyerReads,
	products ProductReads,
	ledger *LotLedger,
	distance DistanceService,
	commissions CommissionRates,
	pricing shipping.Pricing,
	defaultRate decimal.Decimal,
	clk clock.Clock,
) ReservationCommands {
	return &reservationCommandsImpl{
		pool:         pool,
		reservations: reservations,
		buyers:       buyers,
		products:     products,
		ledger:       ledger,
		distance:     distance,
		commissions:  commissions,
		pricing:      pricing,
		defaultRate:  defaultRate,
		clock:        clk,
	}
}

// Reserve records a buyer's partial claim and hands it to the lot ledger.
// The reservation row is durably written before the ledger attach; if the
// attach fails transiently the row stays behind with a NULL lot id for the
// reconciler rather than being rolled back.
func (c *reservationCommandsImpl) Reserve(ctx context.Context, params ReserveParams) (*ReserveResult, error) {
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !params.ShippingMode.Valid() {
		return nil, ErrInvalidMode
	}

	buyer, err := c.buyers.BuyerByID(ctx, params.BuyerID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrBuyerNotFound
		}
		return nil, errs.Mark(err, ErrStoreFailure)
	}
	if buyer.PostalCode == "" || buyer.StreetAddress == "" {
		return nil, ErrMissingAddress
	}

	product, err := c.products.ProductByID(ctx, params.ProductID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, errs.Mark(err, ErrStoreFailure)
	}

	subtotal := reservation.Subtotal(product.PriceCents, params.Quantity)
	commission := reservation.Commission(subtotal, c.commissionRate(ctx, params.BuyerID))
	estimate := c.estimateShipping(ctx, buyer, product, params.ShippingMode)

	res, err := reservation.NewReservation(
		buyer.ID, product.ID, product.FactoryID,
		params.Quantity, params.ShippingMode,
		subtotal, commission, estimate,
		c.clock.Now(),
	)
	if err != nil {
		return nil, errs.Mark(err, ErrDomainValidation)
	}

	if _, err := shared.RunInTx(ctx, c.pool, func(tx db.DBTX) (struct{}, error) {
		return struct{}{}, c.reservations.Create(ctx, tx, res)
	}); err != nil {
		return nil, errs.Mark(err, ErrStoreFailure)
	}

	attach, err := c.ledger.Attach(ctx, res, product.MinQuantity)
	if err != nil {
		return nil, err
	}

	return &ReserveResult{
		ReservationID: res.ID(),
		LotID:         attach.LotID,
		Closed:        attach.Closed,
		Message:       statusMessage(attach),
	}, nil
}

// commissionRate asks the reliability-scoring collaborator, falling back to
// the configured default when it is unavailable or returns garbage.
func (c *reservationCommandsImpl) commissionRate(ctx context.Context, buyerID uuid.UUID) decimal.Decimal {
	rate, err := c.commissions.RateFor(ctx, buyerID)
	if err != nil {
		slog.Warn("commission rate lookup failed, using default",
			"buyer_id", buyerID, "default", c.defaultRate.String(), "error", err)
		return c.defaultRate
	}
	return rate
}

// estimateShipping prices the buyer as if they shipped alone. The estimate is
// provisional; the zone split at closing time supersedes it.
func (c *reservationCommandsImpl) estimateShipping(ctx context.Context, buyer *BuyerSnapshot, product *ProductSnapshot, mode reservation.ShippingMode) int64 {
	if mode == reservation.ModePickup {
		return 0
	}

	km, err := c.distance.DistanceKm(ctx,
		Address{PostalCode: product.FactoryPostal, StreetAddress: product.FactoryStreet},
		Address{PostalCode: buyer.PostalCode, StreetAddress: buyer.StreetAddress},
	)
	if err != nil {
		slog.Warn("distance lookup failed at intake, estimating base fee only",
			"buyer_id", buyer.ID, "error", err)
		return c.pricing.BaseFeeCents
	}
	return c.pricing.CostCents(km)
}

func statusMessage(attach *AttachResult) string {
	if attach.Closed {
		return fmt.Sprintf("lot closed (%d/%d): minimum reached, a payment email is on its way",
			attach.Accumulated, attach.MinQuantity)
	}
	return fmt.Sprintf("joined lot: still accumulating (%d/%d)",
		attach.Accumulated, attach.MinQuantity)
}
