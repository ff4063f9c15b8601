// Package shipping groups platform-shipped buyers into postal-code zones and
// splits each zone's delivery cost evenly across its members.
package shipping

import (
	"strings"

	"lotpool/internal/domain/reservation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pricing holds the distance-based cost constants, injected from config.
type Pricing struct {
	BaseFeeCents int64
	PerKmCents   int64
}

// CostCents is the fee a single buyer would pay shipping alone:
// a flat base fee plus a per-kilometer charge, rounded up to whole cents.
func (p Pricing) CostCents(distanceKm float64) int64 {
	perKm := decimal.NewFromInt(p.PerKmCents).Mul(decimal.NewFromFloat(distanceKm))
	return decimal.NewFromInt(p.BaseFeeCents).Add(perKm).RoundCeil(0).IntPart()
}

// Quote is one reservation's input to the split: its mode, the buyer's postal
// code, and the cost the buyer would pay shipping alone.
type Quote struct {
	ReservationID   uuid.UUID
	Mode            reservation.ShippingMode
	PostalCode      string
	IndividualCents int64
}

// Split assigns every reservation its final shipping charge.
//
// Pickup reservations pay zero. Platform reservations sharing a postal code
// form a zone; each member is charged the zone's maximum individual cost
// divided by the zone size, so nobody pays less than their own remoteness
// alone would justify and intra-zone variance is covered. Reservations with
// no parseable postal code are treated as singletons (their own cost, no
// discount), as is any zone of one.
func Split(quotes []Quote) map[uuid.UUID]int64 {
	result := make(map[uuid.UUID]int64, len(quotes))
	zones := make(map[string][]Quote)

	for _, q := range quotes {
		if q.Mode == reservation.ModePickup {
			result[q.ReservationID] = 0
			continue
		}
		code := NormalizePostalCode(q.PostalCode)
		if code == "" {
			// Ungrouped: singleton, charged their own cost.
			result[q.ReservationID] = q.IndividualCents
			continue
		}
		zones[code] = append(zones[code], q)
	}

	for _, members := range zones {
		var maxCents int64
		for _, q := range members {
			if q.IndividualCents > maxCents {
				maxCents = q.IndividualCents
			}
		}
		perPerson := decimal.NewFromInt(maxCents).
			Div(decimal.NewFromInt(int64(len(members)))).
			RoundCeil(0).
			IntPart()
		for _, q := range members {
			result[q.ReservationID] = perPerson
		}
	}

	return result
}

// NormalizePostalCode is the deterministic parse used for zone matching:
// trim, uppercase, strip a common separator. No network calls.
func NormalizePostalCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}
