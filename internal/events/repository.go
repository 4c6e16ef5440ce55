package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ticketly/internal/shared/apperrors"
)

type Repository interface {
	// WithTx returns a repository bound to the given transaction so event
	// reads/writes can join an engine transaction.
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query EventListQuery) ([]Event, int64, error)
	GetUpcoming(ctx context.Context, limit int) ([]Event, error)
	GetPopular(ctx context.Context, limit int) ([]Event, error)
	ListActiveFuture(ctx context.Context, now time.Time) ([]Event, error)

	// HasActiveBookings reports whether any booking in the given statuses
	// references the event.
	HasActiveBookings(ctx context.Context, eventID uuid.UUID, statuses ...string) (bool, error)

	// UpdatePrice persists a recomputed dynamic price.
	UpdatePrice(ctx context.Context, eventID uuid.UUID, price decimal.Decimal) error
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

func (r *repository) Create(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*Event, error) {
	var event Event

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
		}
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&event).Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
	}
	return nil
}

func (r *repository) List(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	var events []Event
	var totalCount int64

	db := r.db.WithContext(ctx).Model(&Event{})

	if query.Search != "" {
		searchTerm := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(venue) LIKE ?",
			searchTerm, searchTerm, searchTerm)
	}

	if query.Venue != "" {
		db = db.Where("LOWER(venue) LIKE ?", "%"+strings.ToLower(query.Venue)+"%")
	}

	if query.Active != "" {
		db = db.Where("is_active = ?", query.Active == "true")
	}

	if query.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", query.DateFrom); err == nil {
			db = db.Where("event_date >= ?", dateFrom)
		}
	}

	if query.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", query.DateTo); err == nil {
			// Add 24 hours to include the entire day
			dateTo = dateTo.Add(24 * time.Hour)
			db = db.Where("event_date < ?", dateTo)
		}
	}

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	offset := (query.Page - 1) * query.Limit

	err := db.Order("event_date ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&events).Error

	return events, totalCount, err
}

func (r *repository) GetUpcoming(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("event_date > ? AND is_active = ?", time.Now(), true).
		Order("event_date ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetPopular orders active future events by sold share of capacity.
func (r *repository) GetPopular(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("event_date > ? AND is_active = ?", time.Now(), true).
		Order("(total_capacity - available_capacity)::float / total_capacity DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *repository) ListActiveFuture(ctx context.Context, now time.Time) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("event_date > ? AND is_active = ?", now, true).
		Order("event_date ASC").
		Find(&events).Error
	return events, err
}

func (r *repository) HasActiveBookings(ctx context.Context, eventID uuid.UUID, statuses ...string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("bookings").
		Where("event_id = ? AND status IN ?", eventID, statuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdatePrice(ctx context.Context, eventID uuid.UUID, price decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", eventID).
		Update("price", price)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
	}
	return nil
}
