package response

import (
	"time"

	"lotpool/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type LotResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"productId"`
	ProductName    string     `json:"productName"`
	ShippingMode   string     `json:"shippingMode"`
	MinQuantity    int32      `json:"minQuantity"`
	Accumulated    int32      `json:"accumulatedQuantity"`
	Status         string     `json:"status"`
	OrderFinalized bool       `json:"orderFinalized"`
	CreatedAt      time.Time  `json:"createdAt"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
}

func FromLotView(rm *queries.LotView) *LotResponse {
	var resp LotResponse
	_ = copier.Copy(&resp, rm)
	return &resp
}
