package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/notifications"
	"ticketly/internal/seats"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/retry"
)

// fakeRepo keeps bookings in memory. Transactions run the body against a nil
// handle; every collaborator the engine drives is faked at the same level.
type fakeRepo struct {
	Repository

	bookings map[uuid.UUID]*Booking
	history  []BookingHistory
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func (r *fakeRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakeRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *fakeRepo) Create(ctx context.Context, booking *Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	stored := *booking
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *fakeRepo) get(id uuid.UUID) (*Booking, error) {
	stored, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.get(id)
}

func (r *fakeRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.get(id)
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	stored, ok := r.bookings[id]
	if !ok || stored.Status != from {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "booking status changed concurrently")
	}
	stored.Status = to
	if from == StatusPending {
		stored.ExpiresAt = nil
	}
	return nil
}

func (r *fakeRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var due []Booking
	for _, stored := range r.bookings {
		if stored.Status == StatusPending && stored.ExpiresAt != nil && stored.ExpiresAt.Before(now) {
			due = append(due, *stored)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (r *fakeRepo) DeleteSeatBookings(ctx context.Context, bookingID uuid.UUID) error {
	if stored, ok := r.bookings[bookingID]; ok {
		stored.SeatBookings = nil
	}
	return nil
}

func (r *fakeRepo) AppendHistory(ctx context.Context, entry *BookingHistory) error {
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeRepo) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]BookingHistory, error) {
	var entries []BookingHistory
	for _, entry := range r.history {
		if entry.BookingID == bookingID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

type fakeEventsRepo struct {
	events.Repository

	event *events.Event
}

func (r *fakeEventsRepo) WithTx(tx *gorm.DB) events.Repository { return r }

func (r *fakeEventsRepo) GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	if r.event == nil || r.event.ID != id {
		return nil, apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
	}
	copied := *r.event
	return &copied, nil
}

// fakeCapacity mirrors the version-CAS semantics of the capacity controller
// against the shared event struct.
type fakeCapacity struct {
	event *events.Event

	// staleOnce makes the next reserve lose the version race exactly once.
	staleOnce bool

	reserved int
	restored int
}

func (c *fakeCapacity) Reserve(_ *gorm.DB, _ uuid.UUID, n int, expectedVersion int64) error {
	if c.staleOnce {
		c.staleOnce = false
		c.event.Version++
		return apperrors.Concurrency(apperrors.CodeStaleVersion, "event capacity changed concurrently")
	}
	if expectedVersion != c.event.Version {
		return apperrors.Concurrency(apperrors.CodeStaleVersion, "event capacity changed concurrently")
	}
	if c.event.AvailableCapacity < n {
		return apperrors.Inventory(apperrors.CodeInsufficientSeats, "not enough tickets available")
	}
	c.event.AvailableCapacity -= n
	c.event.Version++
	c.reserved += n
	return nil
}

func (c *fakeCapacity) Restore(_ *gorm.DB, _ uuid.UUID, n int) error {
	c.event.AvailableCapacity += n
	if c.event.AvailableCapacity > c.event.TotalCapacity {
		c.event.AvailableCapacity = c.event.TotalCapacity
	}
	c.event.Version++
	c.restored += n
	return nil
}

// fakeSeatGroups applies the all-or-nothing seat transitions in memory.
type fakeSeatGroups struct {
	status map[uuid.UUID]seats.Status
	price  map[uuid.UUID]decimal.Decimal
}

func newFakeSeatGroups() *fakeSeatGroups {
	return &fakeSeatGroups{
		status: make(map[uuid.UUID]seats.Status),
		price:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fakeSeatGroups) add(id uuid.UUID, price int64, status seats.Status) {
	f.status[id] = status
	f.price[id] = decimal.NewFromInt(price)
}

func (f *fakeSeatGroups) transition(ids []uuid.UUID, from []seats.Status, to seats.Status, strict bool) ([]seats.Seat, int, error) {
	eligible := func(s seats.Status) bool {
		for _, allowed := range from {
			if s == allowed {
				return true
			}
		}
		return false
	}

	if strict {
		for _, id := range ids {
			if !eligible(f.status[id]) {
				return nil, 0, apperrors.Inventory(apperrors.CodeSeatNotAvailable, "seat is not available").
					WithDetail("seat_id", id.String())
			}
		}
	}

	var out []seats.Seat
	moved := 0
	for _, id := range ids {
		if !eligible(f.status[id]) {
			continue
		}
		f.status[id] = to
		moved++
		out = append(out, seats.Seat{ID: id, Price: f.price[id], Status: to})
	}
	return out, moved, nil
}

func (f *fakeSeatGroups) HoldGroup(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error) {
	held, _, err := f.transition(seatIDs, []seats.Status{seats.StatusAvailable}, seats.StatusHeld, true)
	return held, err
}

func (f *fakeSeatGroups) BookHeldOrAvailable(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error) {
	booked, _, err := f.transition(seatIDs, []seats.Status{seats.StatusAvailable, seats.StatusHeld}, seats.StatusBooked, true)
	return booked, err
}

func (f *fakeSeatGroups) ReleaseHeld(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	_, moved, err := f.transition(seatIDs, []seats.Status{seats.StatusHeld}, seats.StatusAvailable, false)
	return moved, err
}

func (f *fakeSeatGroups) ReleaseBooked(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	_, moved, err := f.transition(seatIDs, []seats.Status{seats.StatusBooked}, seats.StatusAvailable, false)
	return moved, err
}

type fakeWaitlist struct {
	offers    []int
	converted []uuid.UUID
}

func (w *fakeWaitlist) OfferCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, availableQuantity int) ([]*notifications.Intent, error) {
	w.offers = append(w.offers, availableQuantity)
	deadline := time.Now().UTC().Add(time.Hour)
	return []*notifications.Intent{
		notifications.WaitlistAvailability(uuid.New(), eventID, availableQuantity, deadline),
	}, nil
}

func (w *fakeWaitlist) ConvertEntry(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) error {
	w.converted = append(w.converted, userID)
	return nil
}

type recordingPublisher struct {
	intents []*notifications.Intent
}

func (p *recordingPublisher) Publish(ctx context.Context, intent *notifications.Intent) error {
	p.intents = append(p.intents, intent)
	return nil
}

func (p *recordingPublisher) types() []notifications.IntentType {
	out := make([]notifications.IntentType, len(p.intents))
	for i, intent := range p.intents {
		out[i] = intent.Type
	}
	return out
}

type engineFixture struct {
	svc      *service
	repo     *fakeRepo
	capacity *fakeCapacity
	seats    *fakeSeatGroups
	waitlist *fakeWaitlist
	pub      *recordingPublisher
	event    *events.Event
	clock    *time.Time
}

func newEngineFixture(t *testing.T, event *events.Event) *engineFixture {
	t.Helper()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	event.IsActive = true
	if event.EventDate.IsZero() {
		event.EventDate = time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fx := &engineFixture{
		repo:     newFakeRepo(),
		capacity: &fakeCapacity{event: event},
		seats:    newFakeSeatGroups(),
		waitlist: &fakeWaitlist{},
		pub:      &recordingPublisher{},
		event:    event,
		clock:    &now,
	}
	fx.svc = &service{
		repo:      fx.repo,
		events:    &fakeEventsRepo{event: event},
		capacity:  fx.capacity,
		seatCtrl:  fx.seats,
		waitlist:  fx.waitlist,
		publisher: fx.pub,
		booking:   config.BookingConfig{HoldTimeout: 15 * time.Minute, MaxQuantity: 10},
		policy:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		now:       func() time.Time { return *fx.clock },
	}
	return fx
}

func (fx *engineFixture) create(t *testing.T, userID uuid.UUID, quantity int, seatIDs ...string) *BookingResponse {
	t.Helper()
	resp, err := fx.svc.CreateBooking(context.Background(), userID, &CreateBookingRequest{
		EventID:  fx.event.ID.String(),
		Quantity: quantity,
		SeatIDs:  seatIDs,
	})
	require.NoError(t, err)
	return resp
}

func TestCreateBookingStopsAtExactCapacity(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     1,
		AvailableCapacity: 1,
		Price:             decimal.NewFromInt(50),
	})

	first := fx.create(t, uuid.New(), 1)
	assert.Equal(t, StatusPending, first.Status)
	assert.NotNil(t, first.ExpiresAt)
	assert.True(t, first.TotalAmount.Equal(decimal.NewFromInt(50)))

	_, err := fx.svc.CreateBooking(context.Background(), uuid.New(), &CreateBookingRequest{
		EventID:  fx.event.ID.String(),
		Quantity: 1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInsufficientSeats, apperrors.CodeOf(err))

	assert.Equal(t, 0, fx.event.AvailableCapacity)
	assert.Len(t, fx.repo.bookings, 1)
}

func TestCreateBookingRetriesStaleVersion(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(20),
	})
	fx.capacity.staleOnce = true

	resp := fx.create(t, uuid.New(), 2)
	assert.Equal(t, StatusPending, resp.Status)
	// The lost race re-read the event; inventory moved exactly once.
	assert.Equal(t, 2, fx.capacity.reserved)
	assert.Equal(t, 8, fx.event.AvailableCapacity)
}

func TestCreateBookingRejectsDuplicateSeats(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		HasSeatSelection:  true,
	})
	seatID := uuid.New()
	fx.seats.add(seatID, 800, seats.StatusAvailable)

	// Listing the same seat twice with a matching quantity must not commit a
	// two-ticket booking backed by a single seat.
	_, err := fx.svc.CreateBooking(context.Background(), uuid.New(), &CreateBookingRequest{
		EventID:  fx.event.ID.String(),
		Quantity: 2,
		SeatIDs:  []string{seatID.String(), seatID.String()},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Empty(t, fx.repo.bookings)
	assert.Equal(t, seats.StatusAvailable, fx.seats.status[seatID])
}

func TestCreateSeatedBookingSumsSeatPrices(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		HasSeatSelection:  true,
	})
	premium, standard := uuid.New(), uuid.New()
	fx.seats.add(premium, 1440, seats.StatusAvailable)
	fx.seats.add(standard, 800, seats.StatusAvailable)

	resp := fx.create(t, uuid.New(), 2, premium.String(), standard.String())
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(2240)))
	assert.Len(t, resp.Seats, 2)
	assert.Equal(t, seats.StatusHeld, fx.seats.status[premium])
	assert.Equal(t, seats.StatusHeld, fx.seats.status[standard])
}

func TestCreateSeatedBookingIsAllOrNothing(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		HasSeatSelection:  true,
	})
	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	fx.seats.add(s1, 800, seats.StatusAvailable)
	fx.seats.add(s2, 800, seats.StatusAvailable)
	fx.seats.add(s3, 800, seats.StatusHeld) // another user's hold

	_, err := fx.svc.CreateBooking(context.Background(), uuid.New(), &CreateBookingRequest{
		EventID:  fx.event.ID.String(),
		Quantity: 3,
		SeatIDs:  []string{s1.String(), s2.String(), s3.String()},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSeatNotAvailable, apperrors.CodeOf(err))

	assert.Empty(t, fx.repo.bookings)
	assert.Equal(t, seats.StatusAvailable, fx.seats.status[s1])
	assert.Equal(t, seats.StatusAvailable, fx.seats.status[s2])
}

func TestConfirmBookingBooksSeatsAndConvertsWaitlist(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		HasSeatSelection:  true,
	})
	seatID := uuid.New()
	fx.seats.add(seatID, 800, seats.StatusAvailable)

	userID := uuid.New()
	created := fx.create(t, userID, 1, seatID.String())
	bookingID := uuid.MustParse(created.ID)

	resp, err := fx.svc.ConfirmBooking(context.Background(), userID, false, bookingID, &ConfirmBookingRequest{PaymentReference: "pay-42"})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, resp.Status)
	assert.Nil(t, resp.ExpiresAt)

	assert.Equal(t, seats.StatusBooked, fx.seats.status[seatID])
	assert.Equal(t, []uuid.UUID{userID}, fx.waitlist.converted)
	assert.Contains(t, fx.pub.types(), notifications.IntentBookingConfirmation)
}

func TestConfirmAtExpiryInstantRejected(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(30),
	})

	userID := uuid.New()
	created := fx.create(t, userID, 1)
	bookingID := uuid.MustParse(created.ID)

	// The expiry instant itself already rejects.
	*fx.clock = fx.clock.Add(15 * time.Minute)
	_, err := fx.svc.ConfirmBooking(context.Background(), userID, false, bookingID, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBookingExpired, apperrors.CodeOf(err))

	*fx.clock = fx.clock.Add(time.Minute)
	_, err = fx.svc.ConfirmBooking(context.Background(), userID, false, bookingID, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBookingExpired, apperrors.CodeOf(err))

	stored := fx.repo.bookings[bookingID]
	assert.Equal(t, StatusPending, stored.Status)
}

func TestConfirmByNonOwnerReadsAsNotFound(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(30),
	})

	owner := fx.create(t, uuid.New(), 1)
	bookingID := uuid.MustParse(owner.ID)

	_, err := fx.svc.ConfirmBooking(context.Background(), uuid.New(), false, bookingID, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBookingNotFound, apperrors.CodeOf(err))

	// Admins confirm on behalf of any user.
	resp, err := fx.svc.ConfirmBooking(context.Background(), uuid.New(), true, bookingID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, resp.Status)
}

func TestCancelConfirmedRestoresCapacityAndOffersWaitlist(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(100),
	})

	userID := uuid.New()
	created := fx.create(t, userID, 3)
	bookingID := uuid.MustParse(created.ID)
	assert.Equal(t, 7, fx.event.AvailableCapacity)

	_, err := fx.svc.ConfirmBooking(context.Background(), userID, false, bookingID, nil)
	require.NoError(t, err)

	resp, err := fx.svc.CancelBooking(context.Background(), userID, false, bookingID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, resp.Status)
	require.NotNil(t, resp.RefundAmount)
	assert.True(t, resp.RefundAmount.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, 10, fx.event.AvailableCapacity)
	// The freed quantity was offered to the waitlist inside the transaction
	// and the resulting intents published after commit.
	assert.Equal(t, []int{3}, fx.waitlist.offers)
	assert.Contains(t, fx.pub.types(), notifications.IntentBookingCancellation)
	assert.Contains(t, fx.pub.types(), notifications.IntentWaitlistAvailability)
}

func TestCancelTwiceReportsInvalidStateWithoutSideEffects(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(40),
	})

	userID := uuid.New()
	created := fx.create(t, userID, 2)
	bookingID := uuid.MustParse(created.ID)

	_, err := fx.svc.CancelBooking(context.Background(), userID, false, bookingID, "")
	require.NoError(t, err)
	assert.Equal(t, 10, fx.event.AvailableCapacity)

	_, err = fx.svc.CancelBooking(context.Background(), userID, false, bookingID, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidState, apperrors.CodeOf(err))

	// No double restore, no second offer.
	assert.Equal(t, 2, fx.capacity.restored)
	assert.Equal(t, []int{2}, fx.waitlist.offers)
}

func TestExpireBookingReleasesOnceAndIsIdempotent(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(25),
	})

	created := fx.create(t, uuid.New(), 2)
	bookingID := uuid.MustParse(created.ID)
	assert.Equal(t, 8, fx.event.AvailableCapacity)

	require.NoError(t, fx.svc.ExpireBooking(context.Background(), bookingID))
	assert.Equal(t, StatusExpired, fx.repo.bookings[bookingID].Status)
	assert.Nil(t, fx.repo.bookings[bookingID].ExpiresAt)
	assert.Equal(t, 10, fx.event.AvailableCapacity)
	assert.Equal(t, []int{2}, fx.waitlist.offers)

	require.NoError(t, fx.svc.ExpireBooking(context.Background(), bookingID))
	assert.Equal(t, 2, fx.capacity.restored)
	assert.Equal(t, []int{2}, fx.waitlist.offers)
}

func TestExpireDueBookingsSweepsLapsedHolds(t *testing.T) {
	fx := newEngineFixture(t, &events.Event{
		TotalCapacity:     10,
		AvailableCapacity: 10,
		Price:             decimal.NewFromInt(25),
	})

	fx.create(t, uuid.New(), 1)
	*fx.clock = fx.clock.Add(16 * time.Minute)

	expired, err := fx.svc.ExpireDueBookings(context.Background(), *fx.clock, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 10, fx.event.AvailableCapacity)
}
