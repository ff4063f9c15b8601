package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrInvalidMode      = errors.New("invalid shipping mode")
	ErrInvalidStatus    = errors.New("invalid reservation status")
	ErrNotOwner         = errors.New("requester is not the reservation owner")
	ErrCancelAfterClose = errors.New("reservation cannot be cancelled after lot closure")
	ErrAlreadyCancelled = errors.New("reservation is already cancelled")
	ErrLotAlreadySet    = errors.New("reservation already belongs to a lot")
)

type Reservation struct {
	id                     uuid.UUID
	buyerID                uuid.UUID
	productID              uuid.UUID
	factoryID              uuid.UUID
	lotID                  *uuid.UUID
	quantity               int32
	mode                   ShippingMode
	subtotalCents          int64
	commissionCents        int64
	estimatedShippingCents int64
	finalShippingCents     *int64
	totalCents             *int64
	paymentLink            *string
	status                 Status
	createdAt              time.Time
	updatedAt              time.Time
}

func NewReservation(
	buyerID, productID, factoryID uuid.UUID,
	quantity int32,
	mode ShippingMode,
	subtotalCents, commissionCents, estimatedShippingCents int64,
	now time.Time,
) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	return &Reservation{
		id:                     uuid.New(),
		buyerID:                buyerID,
		productID:              productID,
		factoryID:              factoryID,
		quantity:               quantity,
		mode:                   mode,
		subtotalCents:          subtotalCents,
		commissionCents:        commissionCents,
		estimatedShippingCents: estimatedShippingCents,
		status:                 StatusPendingLot,
		createdAt:              now,
		updatedAt:              now,
	}, nil
}

func Reconstruct(
	id, buyerID, productID, factoryID uuid.UUID,
	lotID *uuid.UUID,
	quantity int32,
	mode ShippingMode,
	subtotalCents, commissionCents, estimatedShippingCents int64,
	finalShippingCents, totalCents *int64,
	paymentLink *string,
	status Status,
	createdAt, updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:                     id,
		buyerID:                buyerID,
		productID:              productID,
		factoryID:              factoryID,
		lotID:                  lotID,
		quantity:               quantity,
		mode:                   mode,
		subtotalCents:          subtotalCents,
		commissionCents:        commissionCents,
		estimatedShippingCents: estimatedShippingCents,
		finalShippingCents:     finalShippingCents,
		totalCents:             totalCents,
		paymentLink:            paymentLink,
		status:                 status,
		createdAt:              createdAt,
		updatedAt:              updatedAt,
	}
}

// AssignLot links the reservation to the lot chosen by the ledger. It is a
// separate step because the reservation row is durably written before the
// ledger transaction runs; the reconciler re-runs this step for orphans.
func (r *Reservation) AssignLot(lotID uuid.UUID) error {
	if r.lotID != nil {
		return ErrLotAlreadySet
	}
	if r.status != StatusPendingLot {
		return ErrInvalidStatus
	}
	id := lotID
	r.lotID = &id
	return nil
}

// MarkLotClosed freezes the reservation the moment its lot crosses the
// minimum; from here on the other buyers' shared-shipping math depends on it
// staying in.
func (r *Reservation) MarkLotClosed(now time.Time) error {
	if r.status != StatusPendingLot {
		return ErrInvalidStatus
	}
	r.status = StatusLotClosed
	r.updatedAt = now
	return nil
}

// Finalize records the shared-shipping outcome and the payment link produced
// by the batch closer, moving the reservation to notified. Re-finalizing an
// already-notified reservation is allowed so a reverted batch run can be
// replayed end to end.
func (r *Reservation) Finalize(finalShippingCents int64, paymentLink string, now time.Time) error {
	if r.status != StatusPendingLot && r.status != StatusLotClosed && r.status != StatusNotified {
		return ErrInvalidStatus
	}
	total := r.subtotalCents + r.commissionCents + finalShippingCents
	r.finalShippingCents = &finalShippingCents
	r.totalCents = &total
	r.paymentLink = &paymentLink
	r.status = StatusNotified
	r.updatedAt = now
	return nil
}

// Cancel reverses the buyer's claim. Only the owner may cancel, and only
// while the lot is still accumulating; once closed the shared-shipping math
// of the other buyers depends on this reservation staying in.
func (r *Reservation) Cancel(requesterID uuid.UUID, now time.Time) error {
	if r.buyerID != requesterID {
		return ErrNotOwner
	}
	switch r.status {
	case StatusPendingLot:
		r.status = StatusCancelled
		r.updatedAt = now
		return nil
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrCancelAfterClose
	}
}

func (r *Reservation) IsActive() bool {
	return r.status == StatusPendingLot
}

func (r *Reservation) ID() uuid.UUID                  { return r.id }
func (r *Reservation) BuyerID() uuid.UUID             { return r.buyerID }
func (r *Reservation) ProductID() uuid.UUID           { return r.productID }
func (r *Reservation) FactoryID() uuid.UUID           { return r.factoryID }
func (r *Reservation) LotID() *uuid.UUID              { return r.lotID }
func (r *Reservation) Quantity() int32                { return r.quantity }
func (r *Reservation) Mode() ShippingMode             { return r.mode }
func (r *Reservation) SubtotalCents() int64           { return r.subtotalCents }
func (r *Reservation) CommissionCents() int64         { return r.commissionCents }
func (r *Reservation) EstimatedShippingCents() int64  { return r.estimatedShippingCents }
func (r *Reservation) FinalShippingCents() *int64     { return r.finalShippingCents }
func (r *Reservation) TotalCents() *int64             { return r.totalCents }
func (r *Reservation) PaymentLink() *string           { return r.paymentLink }
func (r *Reservation) Status() Status                 { return r.status }
func (r *Reservation) CreatedAt() time.Time           { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time           { return r.updatedAt }
