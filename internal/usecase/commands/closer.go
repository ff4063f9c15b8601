package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/domain/shipping"
	"lotpool/internal/pkg/clock"
	"lotpool/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

type CloserConfig struct {
	CloseGrace      time.Duration
	StaleAfter      time.Duration
	LotConcurrency  int
	ProductPageBase string
}

// BatchReport summarizes one closer invocation.
type BatchReport struct {
	StaleReverted int64 `json:"stale_reverted"`
	Reconciled    int   `json:"reconciled"`
	Eligible      int   `json:"eligible"`
	Processed     int   `json:"processed"`
	Failed        int   `json:"failed"`
	Skipped       int   `json:"skipped"`
}

type BatchCloser interface {
	Run(ctx context.Context) (*BatchReport, error)
}

// batchCloserImpl turns closed lots into finalized, payable buyer
// obligations. Each lot walks closed -> processing -> processed_pending_payment;
// any failure reverts it to closed so the next scheduled run retries the whole
// lot from scratch. One lot's failure never touches another's.
type batchCloserImpl struct {
	pool         *pgxpool.Pool
	lots         LotRepository
	reservations ReservationRepository
	reconciler   Reconciler
	gateway      PaymentGateway
	notifier     Notifier
	distance     DistanceService
	pricing      shipping.Pricing
	cfg          CloserConfig
	clock        clock.Clock
}

func NewBatchCloser(
	pool *pgxpool.Pool,
	lots LotRepository,
	reservations ReservationRepository,
	reconciler Reconciler,
	gateway PaymentGateway,
	notifier Notifier,
	distance DistanceService,
	pricing shipping.Pricing,
	cfg CloserConfig,
	clk clock.Clock,
) BatchCloser {
	return &batchCloserImpl{
		pool:         pool,
		lots:         lots,
		reservations: reservations,
		reconciler:   reconciler,
		gateway:      gateway,
		notifier:     notifier,
		distance:     distance,
		pricing:      pricing,
		cfg:          cfg,
		clock:        clk,
	}
}

func (b *batchCloserImpl) Run(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{}
	now := b.clock.Now()

	// Crash recovery: a run that died after claiming a lot leaves it stuck in
	// processing; give it back to the pool once it has been stale long enough.
	reverted, err := b.lots.RevertStale(ctx, b.pool, now.Add(-b.cfg.StaleAfter))
	if err != nil {
		return report, errs.Wrap(err, "failed to revert stale lots")
	}
	report.StaleReverted = reverted

	// Orphaned reservations first, so a re-attached one can still make this run.
	reconciled, err := b.reconciler.Run(ctx)
	if err != nil {
		slog.Warn("reconciliation pass failed, continuing with closer", "error", err)
	}
	report.Reconciled = reconciled

	eligible, err := b.lots.ListEligible(ctx, b.pool, now.Add(-b.cfg.CloseGrace))
	if err != nil {
		return report, errs.Wrap(err, "failed to list eligible lots")
	}
	report.Eligible = len(eligible)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.LotConcurrency)
	results := make([]error, len(eligible))
	claimed := make([]bool, len(eligible))

	for i, l := range eligible {
		i, l := i, l
		g.Go(func() error {
			ok, err := b.processLot(gctx, l)
			claimed[i] = ok
			results[i] = err
			return nil // per-lot failures are isolated, never cancel siblings
		})
	}
	_ = g.Wait()

	for i := range eligible {
		switch {
		case !claimed[i]:
			report.Skipped++
		case results[i] != nil:
			report.Failed++
		default:
			report.Processed++
		}
	}

	slog.Info("batch closer run finished",
		"eligible", report.Eligible,
		"processed", report.Processed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"stale_reverted", report.StaleReverted,
		"reconciled", report.Reconciled)

	return report, nil
}

// processLot runs the full per-lot pipeline. The claimed return reports
// whether this run owned the lot at all; err is any pipeline failure after
// claiming (the lot has been reverted to closed by then).
func (b *batchCloserImpl) processLot(ctx context.Context, l *lot.Lot) (claimed bool, err error) {
	now := b.clock.Now()

	// The single status write is the mutual-exclusion mechanism: a concurrent
	// run loses the CAS and walks away.
	ok, err := b.lots.ClaimForProcessing(ctx, b.pool, l.ID(), now)
	if err != nil {
		return false, errs.Wrap(err, "failed to claim lot")
	}
	if !ok {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = errs.New(fmt.Sprintf("panic while processing lot: %v", r))
		}
		if err != nil {
			slog.Error("lot processing failed, reverting to closed",
				"lot_id", l.ID(), "error", err)
			if revertErr := b.lots.RevertProcessing(ctx, b.pool, l.ID(), err.Error()); revertErr != nil {
				slog.Error("failed to revert lot after processing failure",
					"lot_id", l.ID(), "error", revertErr)
			}
		}
	}()

	pending, err := b.reservations.ListPendingByLot(ctx, b.pool, l.ID())
	if err != nil {
		return true, errs.Wrap(err, "failed to load pending reservations")
	}

	if len(pending) > 0 {
		charges := b.splitShipping(ctx, pending)

		if err := b.createPaymentLinks(ctx, l.ID(), pending, charges); err != nil {
			return true, err
		}
		if err := b.persistFinals(ctx, pending); err != nil {
			return true, err
		}
		if err := b.notifyBuyers(ctx, pending); err != nil {
			return true, errs.Wrap(err, "failed to dispatch notifications")
		}
	}

	if err := b.lots.CompleteProcessing(ctx, b.pool, l.ID(), b.clock.Now()); err != nil {
		return true, errs.Wrap(err, "failed to complete lot")
	}
	return true, nil
}

// splitShipping recomputes each platform buyer's individual cost and runs the
// zone split. A failed distance lookup is isolated to that buyer: the intake
// estimate stands in, and the lot keeps going.
func (b *batchCloserImpl) splitShipping(ctx context.Context, pending []*PendingReservation) map[uuid.UUID]int64 {
	quotes := make([]shipping.Quote, 0, len(pending))
	for _, p := range pending {
		individual := p.Res.EstimatedShippingCents()
		if p.Res.Mode() != reservation.ModePickup {
			km, err := b.distance.DistanceKm(ctx,
				Address{PostalCode: p.FactoryPostal, StreetAddress: p.FactoryStreet},
				Address{PostalCode: p.BuyerPostalCode, StreetAddress: p.BuyerStreet},
			)
			if err != nil {
				slog.Warn("distance lookup failed at closing, falling back to intake estimate",
					"reservation_id", p.Res.ID(), "error", err)
			} else {
				individual = b.pricing.CostCents(km)
			}
		}
		quotes = append(quotes, shipping.Quote{
			ReservationID:   p.Res.ID(),
			Mode:            p.Res.Mode(),
			PostalCode:      p.BuyerPostalCode,
			IndividualCents: individual,
		})
	}
	return shipping.Split(quotes)
}

// createPaymentLinks calls the gateway once per buyer, sequentially: the
// gateway has no bulk endpoint and rate-limits concurrent callers. A link
// already persisted from an earlier run short-circuits the call, and a
// gateway failure falls back to the product page rather than blocking the lot.
func (b *batchCloserImpl) createPaymentLinks(ctx context.Context, lotID uuid.UUID, pending []*PendingReservation, charges map[uuid.UUID]int64) error {
	now := b.clock.Now()

	for _, p := range pending {
		shippingCents := charges[p.Res.ID()]
		total := p.Res.SubtotalCents() + p.Res.CommissionCents() + shippingCents

		link := ""
		if existing := p.Res.PaymentLink(); existing != nil && *existing != "" {
			link = *existing
		} else {
			created, err := b.gateway.CreatePaymentLink(ctx, PaymentLinkRequest{
				AmountCents:     total,
				ReservationID:   p.Res.ID(),
				LotID:           lotID,
				BuyerID:         p.Res.BuyerID(),
				BuyerEmail:      p.BuyerEmail,
				SubtotalCents:   p.Res.SubtotalCents(),
				ShippingCents:   shippingCents,
				CommissionCents: p.Res.CommissionCents(),
			})
			if err != nil {
				slog.Warn("payment link creation failed, falling back to product page",
					"reservation_id", p.Res.ID(), "error", err)
				created = fmt.Sprintf("%s/%s", b.cfg.ProductPageBase, p.Res.ProductID())
			}
			link = created
		}

		if err := p.Res.Finalize(shippingCents, link, now); err != nil {
			return errs.Wrap(err, "failed to finalize reservation")
		}
	}
	return nil
}

// persistFinals writes each reservation's final state. Rows are independent
// and each write is atomic on its own, so the fan-out is unbounded.
func (b *batchCloserImpl) persistFinals(ctx context.Context, pending []*PendingReservation) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pending {
		p := p
		g.Go(func() error {
			return b.reservations.SaveFinal(gctx, b.pool, p.Res)
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(err, "failed to persist finalized reservations")
	}
	return nil
}

func (b *batchCloserImpl) notifyBuyers(ctx context.Context, pending []*PendingReservation) error {
	msgs := make([]Notification, 0, len(pending))
	for _, p := range pending {
		link := ""
		if p.Res.PaymentLink() != nil {
			link = *p.Res.PaymentLink()
		}
		total := int64(0)
		if p.Res.TotalCents() != nil {
			total = *p.Res.TotalCents()
		}
		msgs = append(msgs, Notification{
			Email:       p.BuyerEmail,
			Name:        p.BuyerName,
			ProductName: p.ProductName,
			TotalCents:  total,
			PaymentLink: link,
		})
	}
	return b.notifier.SendBatch(ctx, msgs)
}
