//go:build unit

package shipping_test

import (
	"testing"

	"lotpool/internal/domain/reservation"
	"lotpool/internal/domain/shipping"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCostCents(t *testing.T) {
	pricing := shipping.Pricing{BaseFeeCents: 150000, PerKmCents: 12000}

	assert.Equal(t, int64(150000), pricing.CostCents(0))
	assert.Equal(t, int64(270000), pricing.CostCents(10))
	// Fractional distances round up to whole cents.
	assert.Equal(t, int64(150000+12000*2+6000), pricing.CostCents(2.5))
	assert.Equal(t, int64(150001), pricing.CostCents(0.0000834))
}

func TestSplit(t *testing.T) {
	t.Run("two buyers in one zone each pay half the maximum", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: a, Mode: reservation.ModePlatform, PostalCode: "150-0001", IndividualCents: 600000},
			{ReservationID: b, Mode: reservation.ModePlatform, PostalCode: "1500001", IndividualCents: 480000},
		})

		// Both normalize to the same zone; the zone max (6000.00) splits two ways.
		want := map[uuid.UUID]int64{a: 300000, b: 300000}
		assert.Empty(t, cmp.Diff(want, charges))
	})

	t.Run("zone charge divides the maximum, not each member's own cost", func(t *testing.T) {
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: a, Mode: reservation.ModePlatform, PostalCode: "220-0011", IndividualCents: 900000},
			{ReservationID: b, Mode: reservation.ModePlatform, PostalCode: "220-0011", IndividualCents: 300000},
			{ReservationID: c, Mode: reservation.ModePlatform, PostalCode: "220-0011", IndividualCents: 600000},
		})

		for _, id := range []uuid.UUID{a, b, c} {
			assert.Equal(t, int64(300000), charges[id])
		}
	})

	t.Run("indivisible zone maximum rounds up per member", func(t *testing.T) {
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: a, Mode: reservation.ModePlatform, PostalCode: "530-0001", IndividualCents: 100},
			{ReservationID: b, Mode: reservation.ModePlatform, PostalCode: "530-0001", IndividualCents: 100},
			{ReservationID: c, Mode: reservation.ModePlatform, PostalCode: "530-0001", IndividualCents: 100},
		})

		// 100 / 3 rounds up to 34; the platform absorbs no remainder.
		for _, id := range []uuid.UUID{a, b, c} {
			assert.Equal(t, int64(34), charges[id])
		}
	})

	t.Run("singleton zone pays its own cost", func(t *testing.T) {
		a := uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: a, Mode: reservation.ModePlatform, PostalCode: "980-0021", IndividualCents: 720000},
		})
		assert.Equal(t, int64(720000), charges[a])
	})

	t.Run("pickup pays zero and never joins a zone", func(t *testing.T) {
		pickup, platform := uuid.New(), uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: pickup, Mode: reservation.ModePickup, PostalCode: "150-0001", IndividualCents: 500000},
			{ReservationID: platform, Mode: reservation.ModePlatform, PostalCode: "150-0001", IndividualCents: 500000},
		})

		assert.Equal(t, int64(0), charges[pickup])
		// The platform buyer is alone in the zone despite the shared code.
		assert.Equal(t, int64(500000), charges[platform])
	})

	t.Run("blank postal code is a singleton with no discount", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		charges := shipping.Split([]shipping.Quote{
			{ReservationID: a, Mode: reservation.ModePlatform, PostalCode: "  ", IndividualCents: 400000},
			{ReservationID: b, Mode: reservation.ModePlatform, PostalCode: "", IndividualCents: 350000},
		})

		assert.Equal(t, int64(400000), charges[a])
		assert.Equal(t, int64(350000), charges[b])
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Empty(t, shipping.Split(nil))
	})
}

func TestNormalizePostalCode(t *testing.T) {
	assert.Equal(t, "1500001", shipping.NormalizePostalCode(" 150-0001 "))
	assert.Equal(t, "SW1A1AA", shipping.NormalizePostalCode("sw1a 1aa"))
	assert.Equal(t, "", shipping.NormalizePostalCode("   "))
}
