package queries

import (
	"time"

	"github.com/google/uuid"
)

// Read models (DTO for read side)
type ReservationView struct {
	ID                     uuid.UUID  `json:"id"`
	BuyerID                uuid.UUID  `json:"buyer_id"`
	BuyerName              string     `json:"buyer_name"`
	BuyerEmail             string     `json:"buyer_email"`
	ProductID              uuid.UUID  `json:"product_id"`
	ProductName            string     `json:"product_name"`
	LotID                  *uuid.UUID `json:"lot_id,omitempty"`
	Quantity               int32      `json:"quantity"`
	ShippingMode           string     `json:"shipping_mode"`
	SubtotalCents          int64      `json:"subtotal_cents"`
	CommissionCents        int64      `json:"commission_cents"`
	EstimatedShippingCents int64      `json:"estimated_shipping_cents"`
	FinalShippingCents     *int64     `json:"final_shipping_cents,omitempty"`
	TotalCents             *int64     `json:"total_cents,omitempty"`
	PaymentLink            *string    `json:"payment_link,omitempty"`
	Status                 string     `json:"status"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type ReservationListItem struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	ProductName  string     `json:"product_name"`
	LotID        *uuid.UUID `json:"lot_id,omitempty"`
	Quantity     int32      `json:"quantity"`
	ShippingMode string     `json:"shipping_mode"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LotView backs the storefront's "X of Y reached" progress display.
type LotView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	ProductName    string     `json:"product_name"`
	ShippingMode   string     `json:"shipping_mode"`
	MinQuantity    int32      `json:"min_quantity"`
	Accumulated    int32      `json:"accumulated_quantity"`
	Status         string     `json:"status"`
	OrderFinalized bool       `json:"order_finalized"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}
