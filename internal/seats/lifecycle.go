package seats

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/shared/apperrors"
	"ticketly/pkg/logger"
)

// sweepBatchSize bounds how many expired holds a single sweep pass frees.
const sweepBatchSize = 500

// SeatController performs all-or-nothing status transitions on groups of
// seats, always inside a caller-supplied transaction. Event capacity mirrors
// seat consumption: holding or booking a free seat reserves one unit, freeing
// a held or booked seat restores it, so a transition and its capacity move
// always commit together.
type SeatController struct {
	db       *gorm.DB
	repo     Repository
	events   events.Repository
	capacity *events.CapacityController
	holdTTL  time.Duration
}

func NewSeatController(db *gorm.DB, repo Repository, eventsRepo events.Repository, capacity *events.CapacityController, holdTTL time.Duration) *SeatController {
	return &SeatController{
		db:       db,
		repo:     repo,
		events:   eventsRepo,
		capacity: capacity,
		holdTTL:  holdTTL,
	}
}

// HoldTTL exposes the configured hold duration for expiry stamping.
func (c *SeatController) HoldTTL() time.Duration {
	return c.holdTTL
}

// HoldGroup transitions every seat AVAILABLE -> HELD, or none of them. The
// returned seats carry the prices the caller sums into the booking amount.
func (c *SeatController) HoldGroup(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	ids := sortSeatIDs(seatIDs)

	seats, err := c.lockSeats(ctx, tx, eventID, ids)
	if err != nil {
		return nil, err
	}

	for i := range seats {
		if !seats[i].IsHoldable() {
			return nil, seatNotAvailable(&seats[i])
		}
	}

	if err := c.transition(ctx, tx, ids, []Status{StatusAvailable}, StatusHeld, len(ids)); err != nil {
		return nil, err
	}

	// Held seats consume inventory so GA sales cannot double-sell them.
	if err := c.reserveCapacity(ctx, tx, eventID, len(ids)); err != nil {
		return nil, err
	}

	return seats, nil
}

// BookHeldOrAvailable transitions every seat AVAILABLE|HELD -> BOOKED, or
// none of them. Held seats already consumed capacity at hold time, so only
// the directly-booked subset reserves more.
func (c *SeatController) BookHeldOrAvailable(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	ids := sortSeatIDs(seatIDs)

	seats, err := c.lockSeats(ctx, tx, eventID, ids)
	if err != nil {
		return nil, err
	}

	fresh := 0
	for i := range seats {
		if !seats[i].IsBookable() {
			return nil, seatNotAvailable(&seats[i])
		}
		if seats[i].Status == StatusAvailable {
			fresh++
		}
	}

	if err := c.transition(ctx, tx, ids, []Status{StatusAvailable, StatusHeld}, StatusBooked, len(ids)); err != nil {
		return nil, err
	}

	if fresh > 0 {
		if err := c.reserveCapacity(ctx, tx, eventID, fresh); err != nil {
			return nil, err
		}
	}

	return seats, nil
}

// ReleaseHeld frees held seats back to AVAILABLE, silently skipping seats in
// any other status, and restores capacity for exactly the rows that moved.
func (c *SeatController) ReleaseHeld(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	ids := sortSeatIDs(seatIDs)

	if _, err := c.lockSeats(ctx, tx, eventID, ids); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeSeatNotFound {
			// Tolerate missing rows; release is best effort per seat
			return 0, nil
		}
		return 0, err
	}

	released, err := c.repo.WithTx(tx).UpdateStatus(ctx, ids, []Status{StatusHeld}, StatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to release held seats: %w", err)
	}

	if released > 0 {
		if err := c.capacity.Restore(tx, eventID, int(released)); err != nil {
			return 0, err
		}
	}

	return int(released), nil
}

// ReleaseBooked frees booked seats back to AVAILABLE, restoring capacity for
// exactly the rows that moved.
func (c *SeatController) ReleaseBooked(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	ids := sortSeatIDs(seatIDs)

	if _, err := c.lockSeats(ctx, tx, eventID, ids); err != nil {
		return 0, err
	}

	released, err := c.repo.WithTx(tx).UpdateStatus(ctx, ids, []Status{StatusBooked}, StatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to release booked seats: %w", err)
	}

	if released > 0 {
		if err := c.capacity.Restore(tx, eventID, int(released)); err != nil {
			return 0, err
		}
	}

	return int(released), nil
}

// SweepExpiredHolds frees every seat held longer than the hold TTL as of now
// and returns how many were freed. Runs in its own transaction; rows locked
// by a concurrent booking or sweeper are skipped and picked up next pass.
func (c *SeatController) SweepExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	total := 0

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := now.Add(-c.holdTTL)

		expired, err := c.repo.WithTx(tx).ListExpiredHeld(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return fmt.Errorf("failed to list expired holds: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		byEvent := make(map[uuid.UUID][]uuid.UUID)
		for _, seat := range expired {
			byEvent[seat.EventID] = append(byEvent[seat.EventID], seat.ID)
		}

		for eventID, ids := range byEvent {
			released, err := c.repo.WithTx(tx).UpdateStatus(ctx, ids, []Status{StatusHeld}, StatusAvailable)
			if err != nil {
				return fmt.Errorf("failed to sweep holds for event %s: %w", eventID, err)
			}
			if released > 0 {
				if err := c.capacity.Restore(tx, eventID, int(released)); err != nil {
					return err
				}
			}
			total += int(released)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if total > 0 {
		logger.GetDefault().InfoWithContext(ctx, "expired seat holds swept", map[string]interface{}{
			"released": total,
		})
	}
	return total, nil
}

// lockSeats row-locks the requested seats in id order and verifies every
// requested seat exists and belongs to the event.
func (c *SeatController) lockSeats(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, ids []uuid.UUID) ([]Seat, error) {
	if len(ids) == 0 {
		return nil, apperrors.Validation("at least one seat is required")
	}

	seats, err := c.repo.WithTx(tx).GetForUpdate(ctx, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}

	if len(seats) != len(ids) {
		found := make(map[uuid.UUID]bool, len(seats))
		for _, seat := range seats {
			found[seat.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, apperrors.NotFound(apperrors.CodeSeatNotFound,
					"seat does not exist for this event").
					WithDetail("seat_id", id.String()).
					WithDetail("event_id", eventID.String())
			}
		}
	}

	return seats, nil
}

func (c *SeatController) transition(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, from []Status, to Status, want int) error {
	moved, err := c.repo.WithTx(tx).UpdateStatus(ctx, ids, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition seats to %s: %w", to, err)
	}
	if int(moved) != want {
		// Rows are locked, so a shortfall means a racer slipped between the
		// precondition read and the update; the caller retries.
		return apperrors.Concurrency(apperrors.CodeSeatNotAvailable, "seat states changed concurrently")
	}
	return nil
}

func (c *SeatController) reserveCapacity(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, n int) error {
	event, err := c.events.WithTx(tx).GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	return c.capacity.Reserve(tx, eventID, n, event.Version)
}

// seatNotAvailable reports a seat that failed its transition precondition.
// A held seat may free up when its hold lapses, so the caller may retry; a
// booked or blocked seat is a definitive refusal.
func seatNotAvailable(seat *Seat) *apperrors.Error {
	e := apperrors.Inventory(apperrors.CodeSeatNotAvailable,
		fmt.Sprintf("seat %s-%s-%d is not available", seat.Section, seat.Row, seat.Number)).
		WithDetail("seat_id", seat.ID.String()).
		WithDetail("current_status", string(seat.Status))
	if seat.Status == StatusHeld {
		e.Retryable = true
		e.RetryAfter = time.Second
	}
	return e
}

// sortSeatIDs deduplicates and orders seat ids so concurrent partial-overlap
// groups always lock rows in the same order.
func sortSeatIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
