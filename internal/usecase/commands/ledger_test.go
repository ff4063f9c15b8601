//go:build unit

package commands

import (
	"context"
	"testing"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReservation(t *testing.T, buyerID, productID uuid.UUID, qty int32) *reservation.Reservation {
	t.Helper()
	res, err := reservation.NewReservation(
		buyerID, productID, uuid.New(),
		qty, reservation.ModePlatform,
		100000*int64(qty), 5000*int64(qty), 150000,
		time.Now(),
	)
	require.NoError(t, err)
	return res
}

func TestLedgerAttach(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a lot when the product has none", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))

		res := newTestReservation(t, uuid.New(), uuid.New(), 30)
		require.NoError(t, reservations.Create(ctx, nil, res))

		result, err := ledger.attachInTx(ctx, nil, res, 100)
		require.NoError(t, err)

		assert.False(t, result.Closed)
		assert.Equal(t, int32(30), result.Accumulated)
		assert.Equal(t, int32(100), result.MinQuantity)
		require.NotNil(t, res.LotID())
		assert.Equal(t, result.LotID, *res.LotID())

		stored, err := lots.FindByIDForUpdate(ctx, nil, result.LotID)
		require.NoError(t, err)
		assert.Equal(t, lot.StatusAccumulating, stored.Status())
	})

	t.Run("successive attaches accumulate and the threshold closes the lot", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))
		productID := uuid.New()

		quantities := []int32{30, 50, 40}
		var (
			attached   []*reservation.Reservation
			lastResult *AttachResult
		)
		for _, qty := range quantities {
			res := newTestReservation(t, uuid.New(), productID, qty)
			require.NoError(t, reservations.Create(ctx, nil, res))
			var err error
			lastResult, err = ledger.attachInTx(ctx, nil, res, 100)
			require.NoError(t, err)
			attached = append(attached, res)
		}

		assert.True(t, lastResult.Closed)
		assert.Equal(t, int32(120), lastResult.Accumulated)

		stored, err := lots.FindByIDForUpdate(ctx, nil, lastResult.LotID)
		require.NoError(t, err)
		assert.Equal(t, lot.StatusClosed, stored.Status())

		// The close freezes every member in the same transaction.
		for _, res := range attached {
			assert.Equal(t, reservation.StatusLotClosed, res.Status())
		}
	})

	t.Run("a single oversized reservation closes the lot it opens", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))

		res := newTestReservation(t, uuid.New(), uuid.New(), 150)
		require.NoError(t, reservations.Create(ctx, nil, res))

		result, err := ledger.attachInTx(ctx, nil, res, 100)
		require.NoError(t, err)
		assert.True(t, result.Closed)
		assert.Equal(t, reservation.StatusLotClosed, res.Status())
	})

	t.Run("a racing first attach joins the lot created by the winner", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))
		productID := uuid.New()

		winner := newTestReservation(t, uuid.New(), productID, 60)
		require.NoError(t, reservations.Create(ctx, nil, winner))

		// The competing transaction commits its lot while this one waits on
		// the creation lock; both saw no open lot before either inserted.
		lots.onCreateLock = func() {
			_, err := ledger.attachInTx(ctx, nil, winner, 100)
			require.NoError(t, err)
		}

		loser := newTestReservation(t, uuid.New(), productID, 50)
		require.NoError(t, reservations.Create(ctx, nil, loser))
		result, err := ledger.attachInTx(ctx, nil, loser, 100)
		require.NoError(t, err)

		// The second attach accumulates into the winner's lot instead of
		// inserting a sibling.
		require.NotNil(t, winner.LotID())
		assert.Equal(t, *winner.LotID(), result.LotID)
		assert.Equal(t, int32(110), result.Accumulated)
		assert.True(t, result.Closed)
		assert.Len(t, lots.lots, 1)
	})

	t.Run("a racing first attach joins even when the winner closed immediately", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))
		productID := uuid.New()

		winner := newTestReservation(t, uuid.New(), productID, 150)
		require.NoError(t, reservations.Create(ctx, nil, winner))
		lots.onCreateLock = func() {
			result, err := ledger.attachInTx(ctx, nil, winner, 100)
			require.NoError(t, err)
			require.True(t, result.Closed)
		}

		loser := newTestReservation(t, uuid.New(), productID, 10)
		require.NoError(t, reservations.Create(ctx, nil, loser))
		result, err := ledger.attachInTx(ctx, nil, loser, 100)
		require.NoError(t, err)

		require.NotNil(t, winner.LotID())
		assert.Equal(t, *winner.LotID(), result.LotID)
		assert.Equal(t, int32(160), result.Accumulated)
		assert.Len(t, lots.lots, 1)
		assert.Equal(t, reservation.StatusLotClosed, loser.Status())
	})

	t.Run("second active reservation by the same buyer is rejected and its row removed", func(t *testing.T) {
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))
		buyerID, productID := uuid.New(), uuid.New()

		first := newTestReservation(t, buyerID, productID, 30)
		require.NoError(t, reservations.Create(ctx, nil, first))
		firstResult, err := ledger.attachInTx(ctx, nil, first, 100)
		require.NoError(t, err)

		second := newTestReservation(t, buyerID, productID, 20)
		require.NoError(t, reservations.Create(ctx, nil, second))
		_, err = ledger.attachInTx(ctx, nil, second, 100)
		require.ErrorIs(t, err, ErrDuplicateReservation)

		// The duplicate's row is gone; the lot total is untouched.
		assert.Contains(t, reservations.deleted, second.ID())
		stored, err := lots.FindByIDForUpdate(ctx, nil, firstResult.LotID)
		require.NoError(t, err)
		assert.Equal(t, int32(30), stored.Accumulated())
	})
}

func TestLedgerDetach(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, quantities ...int32) (*fakeLotRepo, *LotLedger, uuid.UUID) {
		t.Helper()
		lots := newFakeLotRepo()
		reservations := newFakeReservationRepo()
		ledger := NewLotLedger(nil, lots, reservations, clock.NewMockClock(time.Now()))
		productID := uuid.New()

		var lotID uuid.UUID
		for _, qty := range quantities {
			res := newTestReservation(t, uuid.New(), productID, qty)
			require.NoError(t, reservations.Create(ctx, nil, res))
			result, err := ledger.attachInTx(ctx, nil, res, 100)
			require.NoError(t, err)
			lotID = result.LotID
		}
		return lots, ledger, lotID
	}

	t.Run("partial detach keeps the lot with the reduced total", func(t *testing.T) {
		lots, ledger, lotID := setup(t, 30, 20)

		result, err := ledger.DetachInTx(ctx, nil, lotID, 20)
		require.NoError(t, err)
		assert.False(t, result.Deleted)

		stored, err := lots.FindByIDForUpdate(ctx, nil, lotID)
		require.NoError(t, err)
		assert.Equal(t, int32(30), stored.Accumulated())
	})

	t.Run("draining the last quantity deletes the lot", func(t *testing.T) {
		lots, ledger, lotID := setup(t, 30)

		result, err := ledger.DetachInTx(ctx, nil, lotID, 30)
		require.NoError(t, err)
		assert.True(t, result.Deleted)

		_, err = lots.FindByIDForUpdate(ctx, nil, lotID)
		require.Error(t, err)
	})

	t.Run("detach from a closed lot is refused", func(t *testing.T) {
		_, ledger, lotID := setup(t, 60, 50)

		status, err := ledger.LotStatusInTx(ctx, nil, lotID)
		require.NoError(t, err)
		require.Equal(t, lot.StatusClosed, status)

		_, err = ledger.DetachInTx(ctx, nil, lotID, 60)
		require.ErrorIs(t, err, lot.ErrNotAccepting)
	})
}
