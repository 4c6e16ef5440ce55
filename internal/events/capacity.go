package events

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketly/internal/shared/apperrors"
)

// CapacityController is the only writer of events.available_capacity. Every
// mutation is a conditional UPDATE guarded by the version column; the CAS
// predicate, not any lock, is what prevents overselling.
type CapacityController struct{}

// NewCapacityController creates the capacity controller.
func NewCapacityController() *CapacityController {
	return &CapacityController{}
}

// Reserve decrements available capacity by n in a single conditional UPDATE.
// When zero rows are affected the event row is reread to distinguish a stale
// version (caller retries with a fresh read) from a definitive shortfall.
func (c *CapacityController) Reserve(tx *gorm.DB, eventID uuid.UUID, n int, expectedVersion int64) error {
	if n <= 0 {
		return apperrors.Validation("reserved quantity must be positive")
	}

	result := tx.Model(&Event{}).
		Where("id = ? AND version = ? AND available_capacity >= ?", eventID, expectedVersion, n).
		Updates(map[string]interface{}{
			"available_capacity": gorm.Expr("available_capacity - ?", n),
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("capacity reserve failed: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// Zero rows: either the version moved underneath us or capacity ran out.
	var event Event
	if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
		}
		return fmt.Errorf("capacity reread failed: %w", err)
	}

	if event.AvailableCapacity < n {
		return apperrors.Inventory(apperrors.CodeInsufficientSeats,
			fmt.Sprintf("only %d of %d requested tickets available", event.AvailableCapacity, n)).
			WithDetail("event_id", eventID.String()).
			WithDetail("available", event.AvailableCapacity).
			WithDetail("requested", n)
	}

	return apperrors.Concurrency(apperrors.CodeStaleVersion, "event capacity changed concurrently").
		WithDetail("event_id", eventID.String())
}

// maxRestoreAttempts bounds the CAS loop in Restore. The loop runs inside a
// transaction, so contention is limited to writers outside this transaction.
const maxRestoreAttempts = 5

// Restore increases available capacity by n, capped at total capacity. It is
// an unconditional reread-and-CAS loop: restoring freed inventory must not
// fail because another writer moved the version.
func (c *CapacityController) Restore(tx *gorm.DB, eventID uuid.UUID, n int) error {
	if n <= 0 {
		return apperrors.Validation("restored quantity must be positive")
	}

	for attempt := 1; attempt <= maxRestoreAttempts; attempt++ {
		var event Event
		if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
			}
			return fmt.Errorf("capacity reread failed: %w", err)
		}

		next := event.AvailableCapacity + n
		if next > event.TotalCapacity {
			next = event.TotalCapacity
		}

		result := tx.Model(&Event{}).
			Where("id = ? AND version = ?", eventID, event.Version).
			Updates(map[string]interface{}{
				"available_capacity": next,
				"version":            gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return fmt.Errorf("capacity restore failed: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}

	return apperrors.Concurrency(apperrors.CodeStaleVersion, "capacity restore kept losing the version race").
		WithDetail("event_id", eventID.String())
}
