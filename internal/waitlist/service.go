package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/notifications"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/constants"
	"ticketly/internal/shared/database"
	"ticketly/pkg/cache"
	"ticketly/pkg/logger"
)

// Coordinator owns every waitlist mutation. Queue rewrites run under the
// event's row-locked queue so positions stay a dense 1..k sequence per event.
// OfferCapacity and ConvertEntry join the booking engine's transaction; the
// engine publishes the intents they return after commit.
type Coordinator interface {
	Join(ctx context.Context, userID uuid.UUID, req *JoinWaitlistRequest) (*EntryResponse, error)
	Leave(ctx context.Context, userID, eventID uuid.UUID) (*LeaveResponse, error)
	GetEntry(ctx context.Context, userID, eventID uuid.UUID) (*EntryResponse, error)
	ListUserEntries(ctx context.Context, userID uuid.UUID) ([]EntryResponse, error)
	GetStats(ctx context.Context, eventID uuid.UUID) (*StatsResponse, error)
	ListEventEntries(ctx context.Context, eventID uuid.UUID, status Status) ([]EntryResponse, error)

	// OfferCapacity walks ACTIVE entries in position order and opens booking
	// windows while the freed quantity lasts. The head of the line blocks:
	// the walk stops at the first entry that does not fit.
	OfferCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, availableQuantity int) ([]*notifications.Intent, error)

	// ConvertEntry closes the loop when a notified user confirms a booking.
	// No-op when the user holds no open window for the event.
	ConvertEntry(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) error

	// ExpireNotifications returns every stale NOTIFIED entry to ACTIVE at the
	// tail of its queue. Re-queued entries get no notification.
	ExpireNotifications(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type coordinator struct {
	repo   Repository
	events events.Repository
	cache  cache.Service

	notifyWindow time.Duration
	maxQuantity  int

	now func() time.Time
}

func NewCoordinator(repo Repository, eventsRepo events.Repository, cacheService cache.Service, cfg *config.Config) Coordinator {
	return &coordinator{
		repo:         repo,
		events:       eventsRepo,
		cache:        cacheService,
		notifyWindow: cfg.Waitlist.NotificationTimeout,
		maxQuantity:  cfg.Waitlist.MaxQuantityPerUser,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Join appends the user to the event's queue. Only effectively sold-out
// events accept joins: while capacity can still satisfy the request, booking
// is the right path.
func (c *coordinator) Join(ctx context.Context, userID uuid.UUID, req *JoinWaitlistRequest) (*EntryResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperrors.Validation("invalid event id")
	}
	if c.maxQuantity > 0 && req.Quantity > c.maxQuantity {
		return nil, apperrors.Validation(
			fmt.Sprintf("quantity must not exceed %d", c.maxQuantity))
	}

	var entry *Entry
	err = c.repo.Transaction(ctx, func(tx *gorm.DB) error {
		event, txErr := c.events.WithTx(tx).GetByID(ctx, eventID)
		if txErr != nil {
			return txErr
		}
		if !event.IsActive {
			return apperrors.BusinessState(apperrors.CodeEventInactive, "event is not active").
				WithDetail("event_id", eventID.String())
		}
		if !event.IsSoldOutFor(req.Quantity) {
			return apperrors.BusinessState(apperrors.CodeEventNotSoldOut,
				"event still has capacity for this quantity; book directly").
				WithDetail("available_capacity", event.AvailableCapacity)
		}

		repo := c.repo.WithTx(tx)
		if _, txErr := repo.LockQueue(ctx, eventID); txErr != nil {
			return txErr
		}

		existing, txErr := repo.GetNonTerminal(ctx, userID, eventID)
		if txErr != nil {
			return txErr
		}
		if existing != nil {
			return apperrors.BusinessState(apperrors.CodeAlreadyOnWaitlist, "user is already on the waitlist").
				WithDetail("position", existing.Position)
		}

		maxPos, txErr := repo.MaxPosition(ctx, eventID)
		if txErr != nil {
			return txErr
		}

		entry = &Entry{
			UserID:      userID,
			EventID:     eventID,
			Quantity:    req.Quantity,
			Position:    maxPos + 1,
			Status:      StatusActive,
			Preferences: database.JSONMap(req.Preferences),
			JoinedAt:    c.now(),
		}
		if txErr := repo.Create(ctx, entry); txErr != nil {
			return fmt.Errorf("failed to create waitlist entry: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.invalidateStats(ctx, eventID)

	resp := entry.ToResponse(c.now())
	return &resp, nil
}

// Leave removes the user's queued entry and closes the position gap. Leaving
// when not queued is not an error.
func (c *coordinator) Leave(ctx context.Context, userID, eventID uuid.UUID) (*LeaveResponse, error) {
	removed := false

	err := c.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		if _, txErr := repo.LockQueue(ctx, eventID); txErr != nil {
			return txErr
		}

		entry, txErr := repo.GetNonTerminal(ctx, userID, eventID)
		if txErr != nil {
			return txErr
		}
		if entry == nil {
			return nil
		}

		if txErr := repo.Delete(ctx, entry.ID); txErr != nil {
			return fmt.Errorf("failed to delete waitlist entry: %w", txErr)
		}
		if txErr := repo.ShiftPositionsAfter(ctx, eventID, entry.Position); txErr != nil {
			return fmt.Errorf("failed to compact waitlist positions: %w", txErr)
		}
		removed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		c.invalidateStats(ctx, eventID)
	}
	return &LeaveResponse{Removed: removed}, nil
}

func (c *coordinator) GetEntry(ctx context.Context, userID, eventID uuid.UUID) (*EntryResponse, error) {
	entry, err := c.repo.GetNonTerminal(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperrors.NotFound(apperrors.CodeWaitlistNotFound, "waitlist entry not found")
	}

	resp := entry.ToResponse(c.now())
	return &resp, nil
}

func (c *coordinator) ListUserEntries(ctx context.Context, userID uuid.UUID) ([]EntryResponse, error) {
	entries, err := c.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}

	now := c.now()
	responses := make([]EntryResponse, len(entries))
	for i := range entries {
		responses[i] = entries[i].ToResponse(now)
	}
	return responses, nil
}

func (c *coordinator) GetStats(ctx context.Context, eventID uuid.UUID) (*StatsResponse, error) {
	fetch := func() (interface{}, error) {
		if _, err := c.events.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		counts, err := c.repo.CountByStatus(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to count waitlist entries: %w", err)
		}
		return &StatsResponse{
			EventID:        eventID.String(),
			ActiveCount:    counts[StatusActive],
			NotifiedCount:  counts[StatusNotified],
			ConvertedCount: counts[StatusConverted],
			ExpiredCount:   counts[StatusExpired],
			QueueLength:    counts[StatusActive] + counts[StatusNotified],
		}, nil
	}

	if c.cache != nil {
		var cached StatsResponse
		key := constants.BuildWaitlistStatsKey(eventID.String())
		if err := c.cache.GetOrSet(ctx, key, constants.TTL_WAITLIST_STATS, fetch, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	return result.(*StatsResponse), nil
}

func (c *coordinator) ListEventEntries(ctx context.Context, eventID uuid.UUID, status Status) ([]EntryResponse, error) {
	entries, err := c.repo.ListByEvent(ctx, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}

	now := c.now()
	responses := make([]EntryResponse, len(entries))
	for i := range entries {
		responses[i] = entries[i].ToResponse(now)
	}
	return responses, nil
}

func (c *coordinator) OfferCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, availableQuantity int) ([]*notifications.Intent, error) {
	if availableQuantity <= 0 {
		return nil, nil
	}

	repo := c.repo.WithTx(tx)
	queue, err := repo.LockQueue(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	deadline := now.Add(c.notifyWindow)
	remaining := availableQuantity

	var intents []*notifications.Intent
	for i := range queue {
		entry := &queue[i]
		if entry.Status != StatusActive {
			continue
		}
		// Head-of-line blocking: a request that does not fit holds up the
		// rest of the queue, preserving strict FIFO fairness.
		if entry.Quantity > remaining {
			break
		}

		if err := repo.SetNotified(ctx, entry.ID, now, deadline); err != nil {
			return nil, err
		}
		remaining -= entry.Quantity

		logger.GetDefault().LogWaitlistNotified(ctx, entry.ID.String(), eventID.String(), entry.Quantity)
		intents = append(intents, notifications.WaitlistAvailability(entry.ID, eventID, entry.Quantity, deadline))

		if remaining == 0 {
			break
		}
	}

	if len(intents) > 0 {
		c.invalidateStats(ctx, eventID)
	}
	return intents, nil
}

func (c *coordinator) ConvertEntry(ctx context.Context, tx *gorm.DB, userID, eventID uuid.UUID) error {
	repo := c.repo.WithTx(tx)
	if _, err := repo.LockQueue(ctx, eventID); err != nil {
		return err
	}

	entry, err := repo.GetNonTerminal(ctx, userID, eventID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status != StatusNotified {
		return nil
	}

	if err := repo.SetTerminal(ctx, entry.ID, StatusNotified, StatusConverted); err != nil {
		return err
	}
	if err := repo.ShiftPositionsAfter(ctx, eventID, entry.Position); err != nil {
		return fmt.Errorf("failed to compact waitlist positions: %w", err)
	}

	c.invalidateStats(ctx, eventID)
	return nil
}

// ExpireNotifications re-queues lapsed windows at the tail, each in its own
// transaction. The stale read is revalidated under the queue lock.
func (c *coordinator) ExpireNotifications(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := c.repo.ListStaleNotified(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale notifications: %w", err)
	}

	requeued := 0
	for _, candidate := range stale {
		err := c.repo.Transaction(ctx, func(tx *gorm.DB) error {
			repo := c.repo.WithTx(tx)
			if _, txErr := repo.LockQueue(ctx, candidate.EventID); txErr != nil {
				return txErr
			}

			entry, txErr := repo.GetByID(ctx, candidate.ID)
			if txErr != nil {
				return txErr
			}
			if entry.Status != StatusNotified || !entry.UpdatedAt.Before(cutoff) {
				return nil
			}

			// Move to the tail. The queue size is unchanged, so the entry's
			// new position is the current maximum; closing its old gap
			// first keeps the sequence dense.
			maxPos, txErr := repo.MaxPosition(ctx, candidate.EventID)
			if txErr != nil {
				return txErr
			}
			if txErr := repo.ShiftPositionsAfter(ctx, candidate.EventID, entry.Position); txErr != nil {
				return txErr
			}
			if txErr := repo.Requeue(ctx, entry.ID, maxPos); txErr != nil {
				return txErr
			}

			requeued++
			return nil
		})
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to requeue waitlist entry", err, map[string]interface{}{
				"entry_id": candidate.ID.String(),
			})
			continue
		}
		c.invalidateStats(ctx, candidate.EventID)
	}
	return requeued, nil
}

func (c *coordinator) invalidateStats(ctx context.Context, eventID uuid.UUID) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, constants.BuildWaitlistStatsKey(eventID.String())); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "failed to invalidate waitlist stats cache", map[string]interface{}{
			"event_id": eventID.String(),
		})
	}
}
