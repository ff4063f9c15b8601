package reservation

// Status tracks a reservation from intake to payment.
//
// pending_lot -> lot_closed -> notified -> paid
//      `-> cancelled (only from pending_lot)
type Status string

const (
	StatusPendingLot Status = "pending_lot"
	StatusLotClosed  Status = "lot_closed"
	StatusNotified   Status = "notified"
	StatusPaid       Status = "paid"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingLot, StatusLotClosed, StatusNotified, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// CountsTowardLot reports whether a reservation in this status contributes
// its quantity to the lot's accumulated total.
func (s Status) CountsTowardLot() bool {
	return s != StatusCancelled
}

// ShippingMode selects who moves the goods. Pickup buyers collect at the
// factory and never pay platform shipping.
type ShippingMode string

const (
	ModePickup   ShippingMode = "pickup"
	ModePlatform ShippingMode = "platform"
)

func (m ShippingMode) Valid() bool {
	return m == ModePickup || m == ModePlatform
}
