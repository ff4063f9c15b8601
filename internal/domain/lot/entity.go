package lot

import (
	"errors"
	"time"

	"lotpool/internal/domain/reservation"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrInvalidMinimum    = errors.New("minimum quantity must be greater than zero")
	ErrNotAccepting      = errors.New("lot is no longer accepting reservations")
	ErrReleaseTooLarge   = errors.New("release exceeds accumulated quantity")
	ErrNotCloseable      = errors.New("lot is not in a processable state")
	ErrAlreadyFinalized  = errors.New("lot has already been finalized")
	ErrNotProcessing     = errors.New("lot is not being processed")
)

// Status is the lot's position in the close/cancel state machine.
//
//	accumulating -> closed -> processing -> processed_pending_payment
//	                   ^----------'  (revert on batch failure)
type Status string

const (
	StatusAccumulating Status = "accumulating"
	StatusClosed       Status = "closed"
	StatusProcessing   Status = "processing"
	StatusProcessed    Status = "processed_pending_payment"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAccumulating, StatusClosed, StatusProcessing, StatusProcessed:
		return true
	}
	return false
}

// Open reports whether new reservations may still attach. A closed lot keeps
// accepting until the batch closer picks it up; a new lot is opened for the
// product only after this one finishes processing.
func (s Status) Open() bool {
	return s == StatusAccumulating || s == StatusClosed
}

type Lot struct {
	id             uuid.UUID
	productID      uuid.UUID
	factoryID      uuid.UUID
	mode           reservation.ShippingMode
	minQuantity    int32
	accumulated    int32
	status         Status
	orderFinalized bool
	createdAt      time.Time
	closedAt       *time.Time
	processingAt   *time.Time
	processedAt    *time.Time
}

// NewLot opens a lot with its first reservation's quantity already applied.
// A single reservation can close a lot on its own.
func NewLot(productID, factoryID uuid.UUID, mode reservation.ShippingMode, minQuantity, quantity int32, now time.Time) (*Lot, error) {
	if minQuantity <= 0 {
		return nil, ErrInvalidMinimum
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	l := &Lot{
		id:          uuid.New(),
		productID:   productID,
		factoryID:   factoryID,
		mode:        mode,
		minQuantity: minQuantity,
		accumulated: quantity,
		status:      StatusAccumulating,
		createdAt:   now,
	}
	if l.accumulated >= l.minQuantity {
		l.close(now)
	}
	return l, nil
}

func Reconstruct(
	id, productID, factoryID uuid.UUID,
	mode reservation.ShippingMode,
	minQuantity, accumulated int32,
	status Status,
	orderFinalized bool,
	createdAt time.Time,
	closedAt, processingAt, processedAt *time.Time,
) *Lot {
	return &Lot{
		id:             id,
		productID:      productID,
		factoryID:      factoryID,
		mode:           mode,
		minQuantity:    minQuantity,
		accumulated:    accumulated,
		status:         status,
		orderFinalized: orderFinalized,
		createdAt:      createdAt,
		closedAt:       closedAt,
		processingAt:   processingAt,
		processedAt:    processedAt,
	}
}

// Apply adds a reservation's quantity and reports whether this call crossed
// the threshold. The accumulating -> closed transition happens exactly once,
// the instant the running total first reaches the minimum.
func (l *Lot) Apply(quantity int32, now time.Time) (crossed bool, err error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	if !l.status.Open() {
		return false, ErrNotAccepting
	}

	l.accumulated += quantity
	if l.status == StatusAccumulating && l.accumulated >= l.minQuantity {
		l.close(now)
		return true, nil
	}
	return false, nil
}

// Release subtracts a cancelled reservation's quantity and reports whether
// the lot is now empty. An empty lot must be deleted, never persisted at zero.
func (l *Lot) Release(quantity int32) (empty bool, err error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	if l.status != StatusAccumulating {
		return false, ErrNotAccepting
	}
	if quantity > l.accumulated {
		return false, ErrReleaseTooLarge
	}

	l.accumulated -= quantity
	return l.accumulated == 0, nil
}

// BeginProcessing is the closer's mutual-exclusion edge: closed -> processing.
func (l *Lot) BeginProcessing(now time.Time) error {
	if l.status != StatusClosed {
		return ErrNotCloseable
	}
	l.status = StatusProcessing
	t := now
	l.processingAt = &t
	return nil
}

// RevertProcessing undoes a failed batch run so the next one retries from scratch.
func (l *Lot) RevertProcessing() error {
	if l.status != StatusProcessing {
		return ErrNotProcessing
	}
	l.status = StatusClosed
	l.processingAt = nil
	return nil
}

// CompleteProcessing finalizes the batch outcome exactly once.
func (l *Lot) CompleteProcessing(now time.Time) error {
	if l.status != StatusProcessing {
		return ErrNotProcessing
	}
	if l.orderFinalized {
		return ErrAlreadyFinalized
	}
	l.status = StatusProcessed
	l.orderFinalized = true
	t := now
	l.processedAt = &t
	return nil
}

func (l *Lot) close(now time.Time) {
	l.status = StatusClosed
	t := now
	l.closedAt = &t
}

func (l *Lot) ID() uuid.UUID                   { return l.id }
func (l *Lot) ProductID() uuid.UUID            { return l.productID }
func (l *Lot) FactoryID() uuid.UUID            { return l.factoryID }
func (l *Lot) Mode() reservation.ShippingMode  { return l.mode }
func (l *Lot) MinQuantity() int32              { return l.minQuantity }
func (l *Lot) Accumulated() int32              { return l.accumulated }
func (l *Lot) Status() Status                  { return l.status }
func (l *Lot) OrderFinalized() bool            { return l.orderFinalized }
func (l *Lot) CreatedAt() time.Time            { return l.createdAt }
func (l *Lot) ClosedAt() *time.Time            { return l.closedAt }
func (l *Lot) ProcessingAt() *time.Time        { return l.processingAt }
func (l *Lot) ProcessedAt() *time.Time         { return l.processedAt }
