//go:build unit

package commands

import (
	"context"
	"sync"
	"time"

	"lotpool/internal/domain/lot"
	"lotpool/internal/domain/reservation"
	"lotpool/internal/infra"
	"lotpool/internal/infra/db"

	"github.com/google/uuid"
)

// In-memory fakes standing in for the postgres repositories. They ignore the
// dbtx argument; transactional behavior is covered by the domain invariants
// these tests drive through the same code paths.

type fakeLotRepo struct {
	mu         sync.Mutex
	lots       map[uuid.UUID]*lot.Lot
	lastErrors map[uuid.UUID]string

	claimCalls    int
	revertCalls   int
	completeCalls int

	// onCreateLock runs once while the creation lock is "held", standing in
	// for a concurrent winner committing its lot. Runs without f.mu so it may
	// call back into the repo.
	onCreateLock func()
}

func newFakeLotRepo() *fakeLotRepo {
	return &fakeLotRepo{
		lots:       make(map[uuid.UUID]*lot.Lot),
		lastErrors: make(map[uuid.UUID]string),
	}
}

func (f *fakeLotRepo) FindOpenForUpdate(_ context.Context, _ db.DBTX, productID uuid.UUID, mode reservation.ShippingMode) (*lot.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lots {
		if l.ProductID() == productID && l.Mode() == mode && l.Status().Open() {
			return l, nil
		}
	}
	return nil, infra.WrapRepoErr("no open lot for product", nil, infra.KindNotFound)
}

func (f *fakeLotRepo) AcquireCreateLock(_ context.Context, _ db.DBTX, _ uuid.UUID, _ reservation.ShippingMode) error {
	if f.onCreateLock != nil {
		hook := f.onCreateLock
		f.onCreateLock = nil
		hook()
	}
	return nil
}

func (f *fakeLotRepo) FindByIDForUpdate(_ context.Context, _ db.DBTX, id uuid.UUID) (*lot.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.lots[id]
	if !ok {
		return nil, infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	return l, nil
}

func (f *fakeLotRepo) Insert(_ context.Context, _ db.DBTX, l *lot.Lot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lots[l.ID()] = l
	return nil
}

func (f *fakeLotRepo) SaveProgress(_ context.Context, _ db.DBTX, l *lot.Lot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lots[l.ID()] = l
	return nil
}

func (f *fakeLotRepo) Delete(_ context.Context, _ db.DBTX, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lots[id]; !ok {
		return infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	delete(f.lots, id)
	return nil
}

func (f *fakeLotRepo) ListEligible(_ context.Context, _ db.DBTX, closedBefore time.Time) ([]*lot.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*lot.Lot
	for _, l := range f.lots {
		if l.Status() == lot.StatusClosed && l.ClosedAt() != nil && !l.ClosedAt().After(closedBefore) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLotRepo) ClaimForProcessing(_ context.Context, _ db.DBTX, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	l, ok := f.lots[id]
	if !ok || l.Status() != lot.StatusClosed {
		return false, nil
	}
	return true, l.BeginProcessing(now)
}

func (f *fakeLotRepo) RevertProcessing(_ context.Context, _ db.DBTX, id uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revertCalls++
	l, ok := f.lots[id]
	if !ok {
		return infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	f.lastErrors[id] = lastError
	return l.RevertProcessing()
}

func (f *fakeLotRepo) CompleteProcessing(_ context.Context, _ db.DBTX, id uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	l, ok := f.lots[id]
	if !ok {
		return infra.WrapRepoErr("lot not found", nil, infra.KindNotFound)
	}
	return l.CompleteProcessing(now)
}

func (f *fakeLotRepo) RevertStale(_ context.Context, _ db.DBTX, processingBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, l := range f.lots {
		if l.Status() == lot.StatusProcessing && l.ProcessingAt() != nil && l.ProcessingAt().Before(processingBefore) {
			if err := l.RevertProcessing(); err != nil {
				return n, err
			}
			f.lastErrors[id] = "reverted: processing timed out"
			n++
		}
	}
	return n, nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation.Reservation
	contacts     map[uuid.UUID]PendingReservation // contact data keyed by reservation ID

	saveFinalCalls int
	deleted        []uuid.UUID
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{
		reservations: make(map[uuid.UUID]*reservation.Reservation),
		contacts:     make(map[uuid.UUID]PendingReservation),
	}
}

func (f *fakeReservationRepo) add(res *reservation.Reservation, contact PendingReservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[res.ID()] = res
	contact.Res = res
	f.contacts[res.ID()] = contact
}

func (f *fakeReservationRepo) Create(_ context.Context, _ db.DBTX, res *reservation.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[res.ID()] = res
	return nil
}

func (f *fakeReservationRepo) FindByIDForUpdate(_ context.Context, _ db.DBTX, id uuid.UUID) (*reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[id]
	if !ok {
		return nil, infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return res, nil
}

func (f *fakeReservationRepo) SetLot(_ context.Context, _ db.DBTX, reservationID, lotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[reservationID]
	if !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return res.AssignLot(lotID)
}

func (f *fakeReservationRepo) SetStatus(_ context.Context, _ db.DBTX, reservationID uuid.UUID, _ reservation.Status, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[reservationID]; !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return nil
}

func (f *fakeReservationRepo) MarkLotClosed(_ context.Context, _ db.DBTX, lotID uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, res := range f.reservations {
		if res.LotID() != nil && *res.LotID() == lotID && res.Status() == reservation.StatusPendingLot {
			if err := res.MarkLotClosed(now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeReservationRepo) SaveFinal(_ context.Context, _ db.DBTX, res *reservation.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveFinalCalls++
	f.reservations[res.ID()] = res
	return nil
}

func (f *fakeReservationRepo) Delete(_ context.Context, _ db.DBTX, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	delete(f.reservations, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReservationRepo) ExistsActiveForLot(_ context.Context, _ db.DBTX, buyerID, lotID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, res := range f.reservations {
		if res.BuyerID() == buyerID && res.LotID() != nil && *res.LotID() == lotID && res.Status() != reservation.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservationRepo) ListPendingByLot(_ context.Context, _ db.DBTX, lotID uuid.UUID) ([]*PendingReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*PendingReservation
	for id, res := range f.reservations {
		if res.LotID() == nil || *res.LotID() != lotID {
			continue
		}
		switch res.Status() {
		case reservation.StatusPendingLot, reservation.StatusLotClosed, reservation.StatusNotified:
			contact := f.contacts[id]
			contact.Res = res
			out = append(out, &contact)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListUnattached(_ context.Context, _ db.DBTX, olderThan time.Time) ([]*reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*reservation.Reservation
	for _, res := range f.reservations {
		if res.LotID() == nil && res.Status() == reservation.StatusPendingLot && res.CreatedAt().Before(olderThan) {
			out = append(out, res)
		}
	}
	return out, nil
}

type fakeDistance struct {
	km  float64
	err error
}

func (f *fakeDistance) DistanceKm(context.Context, Address, Address) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.km, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []PaymentLinkRequest
	err      error
}

func (f *fakeGateway) CreatePaymentLink(_ context.Context, req PaymentLinkRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return "https://pay.example.com/" + req.ReservationID.String(), nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches [][]Notification
	errOnce error
}

func (f *fakeNotifier) SendBatch(_ context.Context, msgs []Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOnce != nil {
		err := f.errOnce
		f.errOnce = nil
		return err
	}
	f.batches = append(f.batches, msgs)
	return nil
}

type fakeReconciler struct {
	resolved int
	err      error
}

func (f *fakeReconciler) Run(context.Context) (int, error) {
	return f.resolved, f.err
}
