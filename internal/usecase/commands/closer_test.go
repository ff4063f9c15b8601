//go:build unit

package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/domain/shipping"
	"lotpool/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CloserTestSuite struct {
	suite.Suite
	lots         *fakeLotRepo
	reservations *fakeReservationRepo
	reconciler   *fakeReconciler
	gateway      *fakeGateway
	notifier     *fakeNotifier
	distance     *fakeDistance
	clock        *clock.MockClock
	closer       BatchCloser
}

func (s *CloserTestSuite) SetupTest() {
	s.lots = newFakeLotRepo()
	s.reservations = newFakeReservationRepo()
	s.reconciler = &fakeReconciler{}
	s.gateway = &fakeGateway{}
	s.notifier = &fakeNotifier{}
	s.distance = &fakeDistance{km: 10}
	s.clock = clock.NewMockClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	s.closer = NewBatchCloser(nil, s.lots, s.reservations, s.reconciler,
		s.gateway, s.notifier, s.distance,
		shipping.Pricing{BaseFeeCents: 150000, PerKmCents: 12000},
		CloserConfig{
			CloseGrace:      time.Minute,
			StaleAfter:      30 * time.Minute,
			LotConcurrency:  2,
			ProductPageBase: "https://shop.example.com/products",
		},
		s.clock,
	)
}

func TestCloserSuite(t *testing.T) {
	suite.Run(t, new(CloserTestSuite))
}

// closedLot builds a lot that crossed its threshold two hours ago, with the
// given reservations already attached.
func (s *CloserTestSuite) closedLot(quantities []int32, postals []string) (*lot.Lot, []*reservation.Reservation) {
	s.T().Helper()
	closedAt := s.clock.Now().Add(-2 * time.Hour)
	productID, factoryID := uuid.New(), uuid.New()

	var total int32
	for _, q := range quantities {
		total += q
	}
	l, err := lot.NewLot(productID, factoryID, reservation.ModePlatform, total, total, closedAt)
	require.NoError(s.T(), err)
	require.Equal(s.T(), lot.StatusClosed, l.Status())
	require.NoError(s.T(), s.lots.Insert(context.Background(), nil, l))

	out := make([]*reservation.Reservation, 0, len(quantities))
	for i, q := range quantities {
		res, err := reservation.NewReservation(
			uuid.New(), productID, factoryID,
			q, reservation.ModePlatform,
			100000*int64(q), 5000*int64(q), 270000,
			closedAt,
		)
		require.NoError(s.T(), err)
		require.NoError(s.T(), res.AssignLot(l.ID()))
		s.reservations.add(res, PendingReservation{
			BuyerName:       "Buyer",
			BuyerEmail:      "buyer@example.com",
			BuyerPostalCode: postals[i],
			BuyerStreet:     "1-2-3",
			FactoryPostal:   "460-0008",
			FactoryStreet:   "4-5-6",
			ProductName:     "Widget",
		})
		out = append(out, res)
	}
	return l, out
}

func (s *CloserTestSuite) TestProcessesAClosedLotEndToEnd() {
	l, rs := s.closedLot([]int32{40, 30, 30}, []string{"150-0001", "150-0001", "980-0021"})

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 1, report.Eligible)
	assert.Equal(s.T(), 1, report.Processed)
	assert.Equal(s.T(), 0, report.Failed)
	assert.Equal(s.T(), lot.StatusProcessed, l.Status())
	assert.True(s.T(), l.OrderFinalized())

	// Everyone is 10km out, so each individual cost is 2700.00. The shared
	// zone of two splits its max in half; the singleton pays in full.
	wantShipping := map[uuid.UUID]int64{
		rs[0].ID(): 135000,
		rs[1].ID(): 135000,
		rs[2].ID(): 270000,
	}
	for _, res := range rs {
		s.Run("reservation finalized", func() {
			assert.Equal(s.T(), reservation.StatusNotified, res.Status())
			require.NotNil(s.T(), res.FinalShippingCents())
			assert.Equal(s.T(), wantShipping[res.ID()], *res.FinalShippingCents())
			require.NotNil(s.T(), res.TotalCents())
			assert.Equal(s.T(), res.SubtotalCents()+res.CommissionCents()+wantShipping[res.ID()], *res.TotalCents())
			require.NotNil(s.T(), res.PaymentLink())
			assert.Equal(s.T(), "https://pay.example.com/"+res.ID().String(), *res.PaymentLink())
		})
	}

	assert.Len(s.T(), s.gateway.requests, 3)
	assert.Equal(s.T(), 3, s.reservations.saveFinalCalls)

	// One batched dispatch for the whole lot.
	require.Len(s.T(), s.notifier.batches, 1)
	assert.Len(s.T(), s.notifier.batches[0], 3)
}

func (s *CloserTestSuite) TestRevertsOnFailureAndReplaysCleanly() {
	l, rs := s.closedLot([]int32{60, 40}, []string{"150-0001", "150-0001"})
	s.notifier.errOnce = errors.New("provider down")

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 1, report.Failed)
	assert.Equal(s.T(), 0, report.Processed)
	assert.Equal(s.T(), lot.StatusClosed, l.Status())
	assert.False(s.T(), l.OrderFinalized())
	assert.Contains(s.T(), s.lots.lastErrors[l.ID()], "provider down")
	assert.Empty(s.T(), s.notifier.batches)

	// Payment links were created and persisted before the failure.
	firstRunCalls := len(s.gateway.requests)
	assert.Equal(s.T(), 2, firstRunCalls)

	// The next run claims the lot again, reuses the persisted links, and
	// finishes without calling the gateway a second time.
	report, err = s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 1, report.Processed)
	assert.Equal(s.T(), lot.StatusProcessed, l.Status())
	assert.Len(s.T(), s.gateway.requests, firstRunCalls)
	require.Len(s.T(), s.notifier.batches, 1)
	assert.Len(s.T(), s.notifier.batches[0], 2)

	for _, res := range rs {
		assert.Equal(s.T(), reservation.StatusNotified, res.Status())
	}
}

func (s *CloserTestSuite) TestGatewayFailureFallsBackToProductPage() {
	l, rs := s.closedLot([]int32{100}, []string{"150-0001"})
	s.gateway.err = errors.New("gateway timeout")

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	// A dead gateway degrades the link, it does not block the lot.
	assert.Equal(s.T(), 1, report.Processed)
	assert.Equal(s.T(), lot.StatusProcessed, l.Status())
	require.NotNil(s.T(), rs[0].PaymentLink())
	assert.Equal(s.T(),
		"https://shop.example.com/products/"+rs[0].ProductID().String(),
		*rs[0].PaymentLink())
}

func (s *CloserTestSuite) TestDistanceFailureFallsBackToIntakeEstimate() {
	_, rs := s.closedLot([]int32{100}, []string{"150-0001"})
	s.distance.err = errors.New("routing unavailable")

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 1, report.Processed)
	require.NotNil(s.T(), rs[0].FinalShippingCents())
	// The 2700.00 estimate captured at intake stands in.
	assert.Equal(s.T(), int64(270000), *rs[0].FinalShippingCents())
}

func (s *CloserTestSuite) TestRecentlyClosedLotWaitsOutTheGrace() {
	l, _ := s.closedLot([]int32{100}, []string{"150-0001"})
	// Pretend the lot closed just now.
	s.clock.Set(l.ClosedAt().Add(30 * time.Second))

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 0, report.Eligible)
	assert.Equal(s.T(), lot.StatusClosed, l.Status())
}

func (s *CloserTestSuite) TestStaleProcessingLotIsRecoveredAndProcessed() {
	l, _ := s.closedLot([]int32{100}, []string{"150-0001"})
	// A previous run died after claiming it, an hour ago.
	require.NoError(s.T(), l.BeginProcessing(s.clock.Now().Add(-time.Hour)))

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), int64(1), report.StaleReverted)
	assert.Equal(s.T(), 1, report.Processed)
	assert.Equal(s.T(), lot.StatusProcessed, l.Status())
}

func (s *CloserTestSuite) TestFreshProcessingLotIsLeftAlone() {
	l, _ := s.closedLot([]int32{100}, []string{"150-0001"})
	require.NoError(s.T(), l.BeginProcessing(s.clock.Now().Add(-time.Minute)))

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), int64(0), report.StaleReverted)
	assert.Equal(s.T(), 0, report.Eligible)
	assert.Equal(s.T(), lot.StatusProcessing, l.Status())
}

func (s *CloserTestSuite) TestLotWithNoPendingReservationsJustCompletes() {
	l, rs := s.closedLot([]int32{100}, []string{"150-0001"})
	require.NoError(s.T(), rs[0].Cancel(rs[0].BuyerID(), s.clock.Now()))

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 1, report.Processed)
	assert.Equal(s.T(), lot.StatusProcessed, l.Status())
	assert.Empty(s.T(), s.gateway.requests)
	assert.Empty(s.T(), s.notifier.batches)
}

func (s *CloserTestSuite) TestFailingLotDoesNotTouchItsSiblings() {
	bad, _ := s.closedLot([]int32{60, 40}, []string{"150-0001", "150-0001"})
	good, _ := s.closedLot([]int32{100}, []string{"980-0021"})

	// LotConcurrency is 2, so both run; only the batch containing the bad
	// lot's notification fails. The fake fails exactly one SendBatch call.
	s.notifier.errOnce = errors.New("provider down")

	report, err := s.closer.Run(context.Background())
	require.NoError(s.T(), err)

	assert.Equal(s.T(), 2, report.Eligible)
	assert.Equal(s.T(), 1, report.Failed)
	assert.Equal(s.T(), 1, report.Processed)

	statuses := []lot.Status{bad.Status(), good.Status()}
	assert.Contains(s.T(), statuses, lot.StatusClosed)
	assert.Contains(s.T(), statuses, lot.StatusProcessed)
}
