package request

import (
	"lotpool/internal/domain/reservation"
	"lotpool/internal/usecase/commands"

	"github.com/google/uuid"
)

type CreateReservationRequest struct {
	ProductID    uuid.UUID `json:"product_id" binding:"required"`
	Quantity     int32     `json:"quantity" binding:"required,gt=0"`
	ShippingMode string    `json:"shipping_mode" binding:"required,oneof=pickup platform"`
}

func (r CreateReservationRequest) ToParams(buyerID uuid.UUID) commands.ReserveParams {
	return commands.ReserveParams{
		BuyerID:      buyerID,
		ProductID:    r.ProductID,
		Quantity:     r.Quantity,
		ShippingMode: reservation.ShippingMode(r.ShippingMode),
	}
}
