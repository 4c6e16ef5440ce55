package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticketly/internal/shared/apperrors"
)

type Repository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) Repository

	// Transaction runs fn in a store transaction; commits on success, rolls
	// back on any error.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// UpdateStatus transitions a booking conditionally on its current status
	// and clears the expiry for any state leaving PENDING.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	ListByUser(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
	ListAll(ctx context.Context, query BookingListQuery) ([]Booking, int64, error)

	// ListExpired returns PENDING bookings whose expiry is past. Expiry
	// itself revalidates status under a row lock, so this read is unlocked.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error)

	DeleteSeatBookings(ctx context.Context, bookingID uuid.UUID) error

	AppendHistory(ctx context.Context, entry *BookingHistory) error
	ListHistory(ctx context.Context, bookingID uuid.UUID) ([]BookingHistory, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("SeatBookings").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeBookingNotFound, "booking not found")
		}
		return nil, err
	}

	// The row lock does not cover preloads; load the seat links separately.
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", id).
		Find(&booking.SeatBookings).Error; err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if from == StatusPending {
		updates["expires_at"] = nil
	}

	result := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "booking status changed concurrently").
			WithDetail("booking_id", id.String())
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("user_id = ?", userID)
	return r.list(base, query)
}

func (r *repository) ListAll(ctx context.Context, query BookingListQuery) ([]Booking, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&Booking{}), query)
}

func (r *repository) list(base *gorm.DB, query BookingListQuery) ([]Booking, int64, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	base = applyFilters(base, query)

	var totalCount int64
	if err := base.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	var bookings []Booking
	offset := (query.Page - 1) * query.Limit
	err := base.
		Preload("SeatBookings").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *repository) DeleteSeatBookings(ctx context.Context, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Delete(&SeatBooking{}).Error
}

func (r *repository) AppendHistory(ctx context.Context, entry *BookingHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, bookingID uuid.UUID) ([]BookingHistory, error) {
	var entries []BookingHistory
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// applyFilters applies query filters to the GORM query
func applyFilters(query *gorm.DB, filters BookingListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.EventID != "" {
		if eventID, err := uuid.Parse(filters.EventID); err == nil {
			query = query.Where("event_id = ?", eventID)
		}
	}

	switch filters.Timeframe {
	case "upcoming":
		query = query.Where("event_id IN (SELECT id FROM events WHERE event_date > ?)", time.Now())
	case "past":
		query = query.Where("event_id IN (SELECT id FROM events WHERE event_date <= ?)", time.Now())
	}

	return query
}
