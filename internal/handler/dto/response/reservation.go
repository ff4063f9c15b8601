package response

import (
	"time"

	"lotpool/internal/usecase/commands"
	"lotpool/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type ReserveResponse struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	LotID         uuid.UUID `json:"lot_id"`
	LotClosed     bool      `json:"lot_closed"`
	Message       string    `json:"message"`
}

func FromReserveResult(r *commands.ReserveResult) *ReserveResponse {
	return &ReserveResponse{
		ReservationID: r.ReservationID,
		LotID:         r.LotID,
		LotClosed:     r.Closed,
		Message:       r.Message,
	}
}

type ReservationResponse struct {
	ID                     uuid.UUID  `json:"id"`
	BuyerID                uuid.UUID  `json:"buyerId"`
	BuyerName              string     `json:"buyerName"`
	ProductID              uuid.UUID  `json:"productId"`
	ProductName            string     `json:"productName"`
	LotID                  *uuid.UUID `json:"lotId,omitempty"`
	Quantity               int32      `json:"quantity"`
	ShippingMode           string     `json:"shippingMode"`
	SubtotalCents          int64      `json:"subtotalCents"`
	CommissionCents        int64      `json:"commissionCents"`
	EstimatedShippingCents int64      `json:"estimatedShippingCents"`
	FinalShippingCents     *int64     `json:"finalShippingCents,omitempty"`
	TotalCents             *int64     `json:"totalCents,omitempty"`
	PaymentLink            *string    `json:"paymentLink,omitempty"`
	Status                 string     `json:"status"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

type ReservationListResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"productId"`
	ProductName  string     `json:"productName"`
	LotID        *uuid.UUID `json:"lotId,omitempty"`
	Quantity     int32      `json:"quantity"`
	ShippingMode string     `json:"shippingMode"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func FromReservationView(rm *queries.ReservationView) *ReservationResponse {
	var resp ReservationResponse
	_ = copier.Copy(&resp, rm)
	return &resp
}

func FromReservationListItem(rm *queries.ReservationListItem) *ReservationListResponse {
	var resp ReservationListResponse
	_ = copier.Copy(&resp, rm)
	return &resp
}
