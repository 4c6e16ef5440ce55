package waitlist

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
	// WithTx returns a repository bound to the given transaction so queue
	// mutations can join a booking-engine transaction.
	WithTx(tx *gorm.DB) Repository

	// Transaction runs fn in a store transaction.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetNonTerminal returns the user's queued entry for an event, nil when
	// the user is not on the waitlist.
	GetNonTerminal(ctx context.Context, userID, eventID uuid.UUID) (*Entry, error)

	// LockQueue row-locks every non-terminal entry of an event in position
	// order. Join, Leave, OfferCapacity and Convert all go through this so
	// position rewrites serialize per event.
	LockQueue(ctx context.Context, eventID uuid.UUID) ([]Entry, error)

	// MaxPosition returns the highest non-terminal position, 0 for an empty
	// queue. Call under LockQueue.
	MaxPosition(ctx context.Context, eventID uuid.UUID) (int, error)

	// SetNotified opens a booking window: ACTIVE -> NOTIFIED conditionally.
	SetNotified(ctx context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) error

	// Requeue returns a NOTIFIED entry to ACTIVE at the given position with
	// its window cleared.
	Requeue(ctx context.Context, id uuid.UUID, position int) error

	// SetTerminal transitions conditionally to a terminal status and zeroes
	// the position, removing the entry from the dense sequence.
	SetTerminal(ctx context.Context, id uuid.UUID, from, to Status) error

	// Delete removes an entry entirely (user leaving the queue).
	Delete(ctx context.Context, id uuid.UUID) error

	// ShiftPositionsAfter closes the gap left at position: every non-terminal
	// entry of the event with a higher position moves down by one.
	ShiftPositionsAfter(ctx context.Context, eventID uuid.UUID, position int) error

	// ListStaleNotified returns NOTIFIED entries whose window opened before
	// cutoff, oldest first.
	ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, status Status) ([]Entry, error)
	CountByStatus(ctx context.Context, eventID uuid.UUID) (map[Status]int, error)
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

func (r *repository) Create(ctx context.Context, entry *Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeWaitlistNotFound, "waitlist entry not found")
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) GetNonTerminal(ctx context.Context, userID, eventID uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND status IN ?", userID, eventID, nonTerminalStatuses).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) LockQueue(ctx context.Context, eventID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND status IN ?", eventID, nonTerminalStatuses).
		Order("position ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) MaxPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("event_id = ? AND status IN ?", eventID, nonTerminalStatuses).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	return max, err
}

func (r *repository) SetNotified(ctx context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Updates(map[string]interface{}{
			"status":      StatusNotified,
			"notified_at": notifiedAt,
			"expires_at":  expiresAt,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently").
			WithDetail("entry_id", id.String())
	}
	return nil
}

func (r *repository) Requeue(ctx context.Context, id uuid.UUID, position int) error {
	result := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ? AND status = ?", id, StatusNotified).
		Updates(map[string]interface{}{
			"status":      StatusActive,
			"position":    position,
			"notified_at": nil,
			"expires_at":  nil,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently").
			WithDetail("entry_id", id.String())
	}
	return nil
}

func (r *repository) SetTerminal(ctx context.Context, id uuid.UUID, from, to Status) error {
	result := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"position":   0,
			"expires_at": nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently").
			WithDetail("entry_id", id.String())
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&Entry{}).Error
}

func (r *repository) ShiftPositionsAfter(ctx context.Context, eventID uuid.UUID, position int) error {
	return r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("event_id = ? AND status IN ? AND position > ?", eventID, nonTerminalStatuses, position).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

func (r *repository) ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusNotified, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID, status Status) ([]Entry, error) {
	query := r.db.WithContext(ctx).Where("event_id = ?", eventID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var entries []Entry
	err := query.Order("position ASC, created_at ASC").Find(&entries).Error
	return entries, err
}

func (r *repository) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[Status]int, error) {
	var rows []struct {
		Status Status
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&Entry{}).
		Select("status, COUNT(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
