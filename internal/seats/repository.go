package seats

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
	// WithTx returns a repository bound to the given transaction so seat
	// transitions can join an engine transaction.
	WithTx(tx *gorm.DB) Repository

	CreateSeats(ctx context.Context, seats []Seat) error
	GetByID(ctx context.Context, id uuid.UUID) (*Seat, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error)
	CountByStatus(ctx context.Context, eventID uuid.UUID) (map[Status]int, error)
	HasSeats(ctx context.Context, eventID uuid.UUID) (bool, error)

	// GetForUpdate loads the given seats of one event with row locks, ordered
	// by id so concurrent partial-overlap holds lock in the same order.
	GetForUpdate(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)

	// UpdateStatus transitions every listed seat currently in one of the from
	// statuses and returns how many rows actually moved.
	UpdateStatus(ctx context.Context, seatIDs []uuid.UUID, from []Status, to Status) (int64, error)

	// ListExpiredHeld loads row-locked HELD seats whose hold started before
	// cutoff, skipping rows locked by a concurrent sweeper or booking.
	ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]Seat, error)
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

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&seats, 500).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Seat, error) {
	var seat Seat
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&seat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeSeatNotFound, "seat not found")
		}
		return nil, err
	}
	return &seat, nil
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("section ASC, row ASC, number ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[Status]int, error) {
	var rows []struct {
		Status Status
		Count  int
	}
	err := r.db.WithContext(ctx).Model(&Seat{}).
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

func (r *repository) HasSeats(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Seat{}).
		Where("event_id = ?", eventID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) GetForUpdate(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND id IN ?", eventID, seatIDs).
		Order("id ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) UpdateStatus(ctx context.Context, seatIDs []uuid.UUID, from []Status, to Status) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&Seat{}).
		Where("id IN ? AND status IN ?", seatIDs, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND updated_at < ?", StatusHeld, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&seats).Error
	return seats, err
}
