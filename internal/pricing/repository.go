package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// CountBookingsBetween counts PENDING and CONFIRMED bookings created in
	// [from, to) for the velocity signal.
	CountBookingsBetween(ctx context.Context, eventID uuid.UUID, from, to time.Time) (int, error)

	// WaitlistSize counts an event's queued (non-terminal) waitlist entries.
	WaitlistSize(ctx context.Context, eventID uuid.UUID) (int, error)

	CreateChange(ctx context.Context, change *PriceChange) error
	ListChanges(ctx context.Context, eventID uuid.UUID, limit int) ([]PriceChange, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Booking and waitlist tables are read by name to keep pricing a leaf
// package; it observes the store without importing the feature packages.

func (r *repository) CountBookingsBetween(ctx context.Context, eventID uuid.UUID, from, to time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("bookings").
		Where("event_id = ? AND created_at >= ? AND created_at < ? AND status IN ?",
			eventID, from, to, []string{"PENDING", "CONFIRMED"}).
		Count(&count).Error
	return int(count), err
}

func (r *repository) WaitlistSize(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("waitlist").
		Where("event_id = ? AND status IN ?", eventID, []string{"ACTIVE", "NOTIFIED"}).
		Count(&count).Error
	return int(count), err
}

func (r *repository) CreateChange(ctx context.Context, change *PriceChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *repository) ListChanges(ctx context.Context, eventID uuid.UUID, limit int) ([]PriceChange, error) {
	var changes []PriceChange
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("evaluated_at DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}
