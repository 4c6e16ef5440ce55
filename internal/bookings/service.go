package bookings

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/notifications"
	"ticketly/internal/seats"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"
	"ticketly/internal/shared/retry"
	"ticketly/pkg/lock"
	"ticketly/pkg/logger"
)

// refAlphabet feeds reference and confirmation code generation.
const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// WaitlistCoordinator is the slice of the waitlist the engine needs: handing
// freed capacity to waiting users inside the freeing transaction, and closing
// the loop when a notified user books. Returned intents are published by the
// engine only after the transaction commits.
type WaitlistCoordinator interface {
	OfferCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, availableQuantity int) ([]*notifications.Intent, error)
	ConvertEntry(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) error
}

// capacityManager is the slice of the capacity controller the engine drives:
// version-guarded reserve on create, unconditional restore on release.
type capacityManager interface {
	Reserve(tx *gorm.DB, eventID uuid.UUID, n int, expectedVersion int64) error
	Restore(tx *gorm.DB, eventID uuid.UUID, n int) error
}

// seatLifecycle is the slice of the seat controller the engine drives. Every
// call joins the engine's transaction.
type seatLifecycle interface {
	HoldGroup(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error)
	BookHeldOrAvailable(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error)
	ReleaseHeld(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error)
	ReleaseBooked(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error)
}

// lockManager is the advisory-lock surface the create paths use. Lock trouble
// degrades to lock-free operation; the store stays the correctness guard.
type lockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	AcquireWait(ctx context.Context, key string, ttl, wait time.Duration) (string, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// Service is the booking engine: the only writer of booking state. Every
// operation runs in a store transaction; create is wrapped in the optimistic
// retry loop.
type Service interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *CreateBookingRequest) (*BookingResponse, error)
	CreateBulkBooking(ctx context.Context, userID uuid.UUID, req *BulkBookingRequest) (*BulkBookingResponse, error)
	ConfirmBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID, req *ConfirmBookingRequest) (*BookingResponse, error)
	CancelBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID, reason string) (*BookingResponse, error)
	ExpireBooking(ctx context.Context, bookingID uuid.UUID) error
	ExpireDueBookings(ctx context.Context, now time.Time, limit int) (int, error)
	GetBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*BookingResponse, error)
	GetBookingHistory(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID) ([]HistoryResponse, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error)
	ListAllBookings(ctx context.Context, query BookingListQuery) (*PaginatedBookings, error)
}

type service struct {
	repo      Repository
	events    events.Repository
	capacity  capacityManager
	seatCtrl  seatLifecycle
	seatRepo  seats.Repository
	waitlist  WaitlistCoordinator
	locks     lockManager
	publisher notifications.Publisher

	booking config.BookingConfig
	lockCfg config.LockConfig
	policy  retry.Policy

	// now is swappable in tests.
	now func() time.Time
}

func NewService(
	repo Repository,
	eventsRepo events.Repository,
	capacity *events.CapacityController,
	seatCtrl *seats.SeatController,
	seatRepo seats.Repository,
	waitlist WaitlistCoordinator,
	locks *lock.Service,
	publisher notifications.Publisher,
	cfg *config.Config,
) Service {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	s := &service{
		repo:      repo,
		events:    eventsRepo,
		capacity:  capacity,
		seatCtrl:  seatCtrl,
		seatRepo:  seatRepo,
		waitlist:  waitlist,
		publisher: publisher,
		booking:   cfg.Booking,
		lockCfg:   cfg.Lock,
		policy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	// A typed nil pointer must not end up inside the interface: the nil
	// checks on s.locks gate the whole lock path.
	if locks != nil {
		s.locks = locks
	}
	return s
}

// CreateBooking reserves inventory and opens a PENDING booking with a
// hold-timeout expiry. Seat selection holds the requested seats; general
// admission decrements event capacity under version CAS.
func (s *service) CreateBooking(ctx context.Context, userID uuid.UUID, req *CreateBookingRequest) (*BookingResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperrors.Validation("invalid event id")
	}
	if req.Quantity < 1 || req.Quantity > s.booking.MaxQuantity {
		return nil, apperrors.Validation(
			fmt.Sprintf("quantity must be between 1 and %d", s.booking.MaxQuantity))
	}

	seatIDs, err := parseSeatIDs(req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(seatIDs) > 0 && len(seatIDs) != req.Quantity {
		return nil, apperrors.Validation("seat count must match quantity")
	}

	// Best-effort lock so one user cannot race their own requests; the
	// version CAS stays the correctness guard when the lock is unavailable.
	release := s.tryLock(ctx, lock.BookingKey(eventID, userID))
	defer release()

	var booking *Booking
	err = retry.Do(ctx, s.policy, "booking.create", func(ctx context.Context) error {
		booking = nil
		return s.repo.Transaction(ctx, func(tx *gorm.DB) error {
			created, txErr := s.createInTx(ctx, tx, userID, eventID, req.Quantity, seatIDs, nil)
			if txErr != nil {
				return txErr
			}
			booking = created
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogBookingCreated(ctx, booking.ID.String(), eventID.String(), userID.String(), booking.Quantity)

	resp := booking.ToResponse(s.now())
	return &resp, nil
}

// createInTx is the shared transactional core of single and bulk create.
// extraDetails lands in the CREATED history entry.
func (s *service) createInTx(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID, quantity int, seatIDs []uuid.UUID, extraDetails map[string]interface{}) (*Booking, error) {
	now := s.now()

	event, err := s.events.WithTx(tx).GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsBookable(now) {
		return nil, apperrors.BusinessState(apperrors.CodeEventInactive,
			"event is not open for booking").
			WithDetail("event_id", eventID.String())
	}
	if len(seatIDs) > 0 && !event.HasSeatSelection {
		return nil, apperrors.Validation("event does not support seat selection")
	}

	var totalAmount decimal.Decimal
	var seatLinks []SeatBooking

	if len(seatIDs) > 0 {
		held, err := s.seatCtrl.HoldGroup(ctx, tx, eventID, seatIDs)
		if err != nil {
			return nil, err
		}
		for _, seat := range held {
			totalAmount = totalAmount.Add(seat.Price)
			seatLinks = append(seatLinks, SeatBooking{SeatID: seat.ID, SeatPrice: seat.Price})
		}
	} else {
		if err := s.capacity.Reserve(tx, eventID, quantity, event.Version); err != nil {
			return nil, err
		}
		totalAmount = event.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	}

	ref, err := generateBookingRef()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	expiresAt := now.Add(s.booking.HoldTimeout)
	booking := &Booking{
		UserID:       userID,
		EventID:      eventID,
		Quantity:     quantity,
		TotalAmount:  totalAmount,
		Status:       StatusPending,
		BookingRef:   ref,
		ExpiresAt:    &expiresAt,
		SeatBookings: seatLinks,
	}
	if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	details := database.JSONMap{
		"quantity":     quantity,
		"total_amount": totalAmount.String(),
		"booking_ref":  ref,
	}
	if len(seatIDs) > 0 {
		details["seat_count"] = len(seatIDs)
	}
	for k, v := range extraDetails {
		details[k] = v
	}

	if err := s.appendHistory(ctx, tx, booking.ID, ActionCreated, details, &userID); err != nil {
		return nil, err
	}

	return booking, nil
}

// ConfirmBooking finalizes a pending booking within its hold window. Owner
// mismatches are reported as not-found so booking ids cannot be probed.
func (s *service) ConfirmBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID, req *ConfirmBookingRequest) (*BookingResponse, error) {
	var booking *Booking

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		b, err := s.repo.WithTx(tx).GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !isAdmin && b.UserID != userID {
			return apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
		}
		if b.Status != StatusPending {
			return apperrors.BusinessState(apperrors.CodeInvalidState,
				fmt.Sprintf("booking cannot be confirmed from %s", b.Status)).
				WithDetail("current_status", string(b.Status))
		}

		now := s.now()
		if b.IsExpiredAt(now) {
			return apperrors.BusinessState(apperrors.CodeBookingExpired,
				"booking hold has expired").
				WithDetail("expired_at", b.ExpiresAt.Format(time.RFC3339))
		}

		if b.HasSeats() {
			if _, err := s.seatCtrl.BookHeldOrAvailable(ctx, tx, b.EventID, b.SeatIDs()); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, StatusPending, StatusConfirmed); err != nil {
			return err
		}

		details := database.JSONMap{}
		if req != nil && req.PaymentReference != "" {
			details["payment_reference"] = req.PaymentReference
		}
		if err := s.appendHistory(ctx, tx, b.ID, ActionConfirmed, details, &userID); err != nil {
			return err
		}

		if s.waitlist != nil {
			if err := s.waitlist.ConvertEntry(ctx, tx, b.UserID, b.EventID); err != nil {
				return err
			}
		}

		b.Status = StatusConfirmed
		b.ExpiresAt = nil
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogBookingConfirmed(ctx, booking.ID.String(), booking.EventID.String())
	s.publish(ctx, notifications.BookingConfirmation(booking.ID, booking.EventID, map[string]interface{}{
		"booking_ref":  booking.BookingRef,
		"total_amount": booking.TotalAmount.String(),
	}))

	resp := booking.ToResponse(s.now())
	return &resp, nil
}

// CancelBooking releases the booking's inventory, offers it to the waitlist
// and emits a cancellation intent. Confirmed bookings report a refund amount.
func (s *service) CancelBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID, reason string) (*BookingResponse, error) {
	var booking *Booking
	var wasConfirmed bool
	var offers []*notifications.Intent

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		b, err := s.repo.WithTx(tx).GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !isAdmin && b.UserID != userID {
			return apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
		}
		if !b.Status.CanTransitionTo(StatusCancelled) {
			return apperrors.BusinessState(apperrors.CodeInvalidState,
				fmt.Sprintf("booking cannot be cancelled from %s", b.Status)).
				WithDetail("current_status", string(b.Status))
		}
		wasConfirmed = b.Status == StatusConfirmed

		if err := s.releaseInventory(ctx, tx, b); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, b.Status, StatusCancelled); err != nil {
			return err
		}

		details := database.JSONMap{}
		if reason != "" {
			details["reason"] = reason
		}
		if err := s.appendHistory(ctx, tx, b.ID, ActionCancelled, details, &userID); err != nil {
			return err
		}

		offers, err = s.offerCapacity(ctx, tx, b.EventID, b.Quantity)
		if err != nil {
			return err
		}

		b.Status = StatusCancelled
		b.ExpiresAt = nil
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogBookingCancelled(ctx, booking.ID.String(), booking.EventID.String(), booking.UserID.String())
	s.publish(ctx, notifications.BookingCancellation(booking.ID, booking.EventID, map[string]interface{}{
		"booking_ref": booking.BookingRef,
		"reason":      reason,
	}))
	s.publishAll(ctx, offers)

	resp := booking.ToResponse(s.now())
	if wasConfirmed {
		refund := booking.TotalAmount
		resp.RefundAmount = &refund
	}
	return &resp, nil
}

// ExpireBooking is the scheduler/admin path of Cancel: terminal status is
// EXPIRED and no user-visible cancellation intent is emitted. Idempotent on
// bookings that already left PENDING.
func (s *service) ExpireBooking(ctx context.Context, bookingID uuid.UUID) error {
	var booking *Booking
	var offers []*notifications.Intent

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		b, err := s.repo.WithTx(tx).GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusPending {
			return nil
		}

		if err := s.releaseInventory(ctx, tx, b); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, b.ID, StatusPending, StatusExpired); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, tx, b.ID, ActionExpired, nil, nil); err != nil {
			return err
		}

		offers, err = s.offerCapacity(ctx, tx, b.EventID, b.Quantity)
		if err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return err
	}

	if booking != nil {
		logger.GetDefault().LogBookingExpired(ctx, booking.ID.String(), booking.EventID.String())
		s.publishAll(ctx, offers)
	}
	return nil
}

// ExpireDueBookings expires every lapsed PENDING booking, each in its own
// transaction so one failure does not halt the sweep.
func (s *service) ExpireDueBookings(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired bookings: %w", err)
	}

	expired := 0
	for _, b := range due {
		if err := s.ExpireBooking(ctx, b.ID); err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to expire booking", err, map[string]interface{}{
				"booking_id": b.ID.String(),
			})
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *service) GetBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*BookingResponse, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && booking.UserID != userID {
		return nil, apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
	}

	resp := booking.ToResponse(s.now())
	return &resp, nil
}

func (s *service) GetBookingHistory(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID uuid.UUID) ([]HistoryResponse, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && booking.UserID != userID {
		return nil, apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
	}

	entries, err := s.repo.ListHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking history: %w", err)
	}

	responses := make([]HistoryResponse, len(entries))
	for i := range entries {
		responses[i] = entries[i].ToResponse()
	}
	return responses, nil
}

func (s *service) ListUserBookings(ctx context.Context, userID uuid.UUID, query BookingListQuery) (*PaginatedBookings, error) {
	bookingList, totalCount, err := s.repo.ListByUser(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return s.paginate(bookingList, totalCount, query), nil
}

func (s *service) ListAllBookings(ctx context.Context, query BookingListQuery) (*PaginatedBookings, error) {
	bookingList, totalCount, err := s.repo.ListAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return s.paginate(bookingList, totalCount, query), nil
}

func (s *service) paginate(bookingList []Booking, totalCount int64, query BookingListQuery) *PaginatedBookings {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	now := s.now()
	responses := make([]BookingResponse, len(bookingList))
	for i := range bookingList {
		responses[i] = bookingList[i].ToResponse(now)
	}

	totalPages := int(totalCount) / query.Limit
	if int(totalCount)%query.Limit != 0 {
		totalPages++
	}

	return &PaginatedBookings{
		Bookings:   responses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}
}

// releaseInventory frees whatever the booking holds, exactly once: seats for
// seated bookings (the seat controller restores capacity per transitioned
// row), a plain capacity restore for general admission.
func (s *service) releaseInventory(ctx context.Context, tx *gorm.DB, b *Booking) error {
	if b.HasSeats() {
		if b.Status == StatusConfirmed {
			if _, err := s.seatCtrl.ReleaseBooked(ctx, tx, b.EventID, b.SeatIDs()); err != nil {
				return err
			}
			return s.repo.WithTx(tx).DeleteSeatBookings(ctx, b.ID)
		}
		_, err := s.seatCtrl.ReleaseHeld(ctx, tx, b.EventID, b.SeatIDs())
		return err
	}
	return s.capacity.Restore(tx, b.EventID, b.Quantity)
}

func (s *service) offerCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, quantity int) ([]*notifications.Intent, error) {
	if s.waitlist == nil {
		return nil, nil
	}
	return s.waitlist.OfferCapacity(ctx, tx, eventID, quantity)
}

func (s *service) appendHistory(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, action HistoryAction, details database.JSONMap, performedBy *uuid.UUID) error {
	entry := &BookingHistory{
		BookingID:   bookingID,
		Action:      action,
		Details:     details,
		PerformedBy: performedBy,
	}
	if err := s.repo.WithTx(tx).AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append booking history: %w", err)
	}
	return nil
}

// tryLock acquires a best-effort lock and returns its release function. Lock
// trouble never fails the operation; the store protects correctness.
func (s *service) tryLock(ctx context.Context, key string) func() {
	if s.locks == nil {
		return func() {}
	}
	token, err := s.locks.Acquire(ctx, key, s.lockCfg.DefaultTTL)
	if err != nil {
		logger.GetDefault().DebugWithContext(ctx, "proceeding without booking lock", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return func() {}
	}
	return func() {
		if _, err := s.locks.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.GetDefault().DebugWithContext(ctx, "booking lock release failed", map[string]interface{}{
				"key": key,
			})
		}
	}
}

func (s *service) publish(ctx context.Context, intent *notifications.Intent) {
	if err := s.publisher.Publish(ctx, intent); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to publish intent", err, map[string]interface{}{
			"intent_type": string(intent.Type),
		})
	}
}

func (s *service) publishAll(ctx context.Context, intents []*notifications.Intent) {
	for _, intent := range intents {
		s.publish(ctx, intent)
	}
}

func parseSeatIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid seat id %q", r))
		}
		// Duplicates would let quantity diverge from the seats actually
		// reserved: the hold dedupes ids before locking rows.
		if seen[id] {
			return nil, apperrors.Validation(fmt.Sprintf("duplicate seat id %q", r))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// generateBookingRef builds the human-readable reference surfaced on tickets
// and in notifications: TKT-YYYYMMDD-XXXXXX.
func generateBookingRef() (string, error) {
	suffix, err := randomCode(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%s", time.Now().UTC().Format("20060102"), suffix), nil
}

// randomCode draws n characters from the A-Z0-9 alphabet with crypto/rand.
func randomCode(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(refAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = refAlphabet[idx.Int64()]
	}
	return string(out), nil
}
