package seats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/constants"
	"ticketly/pkg/cache"
	"ticketly/pkg/logger"
)

// rowLabelAlphabet drives generated row names: A..Z, then AA, AB, ...
const rowLabelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Service interface {
	GetSeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error)
	GetAvailability(ctx context.Context, eventID uuid.UUID) (*AvailabilitySummary, error)
	GenerateSeats(ctx context.Context, eventID uuid.UUID, req *GenerateSeatsRequest) (*SeatMapResponse, error)
	SetBlocked(ctx context.Context, eventID uuid.UUID, req *BlockSeatsRequest) (*BlockSeatsResponse, error)

	// HoldSeats and ReleaseSeats expose the hold lifecycle directly, for
	// seat pickers that reserve before a booking exists.
	HoldSeats(ctx context.Context, eventID uuid.UUID, req *HoldSeatsRequest) (*HoldSeatsResponse, error)
	ReleaseSeats(ctx context.Context, eventID uuid.UUID, req *ReleaseSeatsRequest) (*ReleaseSeatsResponse, error)
}

type service struct {
	db        *gorm.DB
	repo      Repository
	events    events.Repository
	capacity  *events.CapacityController
	lifecycle *SeatController
	cache     cache.Service
}

func NewService(db *gorm.DB, repo Repository, eventsRepo events.Repository, capacity *events.CapacityController, lifecycle *SeatController, cacheService cache.Service) Service {
	return &service{
		db:        db,
		repo:      repo,
		events:    eventsRepo,
		capacity:  capacity,
		lifecycle: lifecycle,
		cache:     cacheService,
	}
}

func (s *service) GetSeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error) {
	fetch := func() (interface{}, error) {
		if _, err := s.events.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		seats, err := s.repo.ListByEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load seats: %w", err)
		}
		return buildSeatMap(eventID, seats), nil
	}

	if s.cache != nil {
		var cached SeatMapResponse
		key := constants.BuildSeatMapKey(eventID.String())
		if err := s.cache.GetOrSet(ctx, key, constants.TTL_SEAT_MAP, fetch, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	return result.(*SeatMapResponse), nil
}

func (s *service) GetAvailability(ctx context.Context, eventID uuid.UUID) (*AvailabilitySummary, error) {
	fetch := func() (interface{}, error) {
		if _, err := s.events.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		counts, err := s.repo.CountByStatus(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to count seats: %w", err)
		}
		return summarize(eventID, counts), nil
	}

	if s.cache != nil {
		var cached AvailabilitySummary
		key := constants.BuildSeatAvailabilityKey(eventID.String())
		if err := s.cache.GetOrSet(ctx, key, constants.TTL_SEAT_AVAILABILITY, fetch, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	return result.(*AvailabilitySummary), nil
}

// GenerateSeats materializes a seat grid for a seated event. The grid is
// created once; regenerating requires deleting the event.
func (s *service) GenerateSeats(ctx context.Context, eventID uuid.UUID, req *GenerateSeatsRequest) (*SeatMapResponse, error) {
	sectionNames := make(map[string]bool, len(req.Sections))
	for _, section := range req.Sections {
		if section.Price.IsNegative() {
			return nil, apperrors.Validation("seat price must not be negative")
		}
		if sectionNames[section.Name] {
			return nil, apperrors.Validation(fmt.Sprintf("duplicate section %q", section.Name))
		}
		sectionNames[section.Name] = true
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.HasSeatSelection {
		return nil, apperrors.BusinessState(apperrors.CodeEventInactive,
			"event does not use seat selection")
	}
	if total := req.TotalSeats(); total > event.TotalCapacity {
		return nil, apperrors.Validation(
			fmt.Sprintf("grid defines %d seats but event capacity is %d", total, event.TotalCapacity))
	}

	var seats []Seat
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.WithTx(tx).HasSeats(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to check existing seats: %w", err)
		}
		if exists {
			return apperrors.BusinessState(apperrors.CodeInvalidState,
				"seats are already generated for this event")
		}

		seats = expandGrid(eventID, req)
		return s.repo.WithTx(tx).CreateSeats(ctx, seats)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)

	logger.GetDefault().InfoWithContext(ctx, "seat grid generated", map[string]interface{}{
		"event_id": eventID.String(),
		"seats":    len(seats),
	})

	return buildSeatMap(eventID, seats), nil
}

// HoldSeats transitions the whole group AVAILABLE -> HELD in one transaction
// and reports when the hold lapses. The sweeper frees every hold after the
// configured TTL, so a longer requested duration is capped at the TTL.
func (s *service) HoldSeats(ctx context.Context, eventID uuid.UUID, req *HoldSeatsRequest) (*HoldSeatsResponse, error) {
	seatIDs, err := parseSeatIDList(req.SeatIDs)
	if err != nil {
		return nil, err
	}

	duration := effectiveHoldDuration(req.HoldDurationMinutes, s.lifecycle.HoldTTL())

	var held []Seat
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		held, txErr = s.lifecycle.HoldGroup(ctx, tx, eventID, seatIDs)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)

	resp := &HoldSeatsResponse{
		HeldSeatIDs: make([]string, 0, len(held)),
		ExpiresAt:   time.Now().UTC().Add(duration),
	}
	for i := range held {
		resp.HeldSeatIDs = append(resp.HeldSeatIDs, held[i].ID.String())
	}
	return resp, nil
}

// ReleaseSeats frees held seats early. Seats in any other status are skipped,
// so releasing an already-lapsed hold is harmless.
func (s *service) ReleaseSeats(ctx context.Context, eventID uuid.UUID, req *ReleaseSeatsRequest) (*ReleaseSeatsResponse, error) {
	seatIDs, err := parseSeatIDList(req.SeatIDs)
	if err != nil {
		return nil, err
	}

	var released int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		released, txErr = s.lifecycle.ReleaseHeld(ctx, tx, eventID, seatIDs)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if released > 0 {
		s.invalidate(ctx, eventID)
	}
	return &ReleaseSeatsResponse{ReleasedCount: released}, nil
}

// SetBlocked moves seats between AVAILABLE and BLOCKED. Blocking consumes
// capacity and unblocking restores it, so blocked seats never count as
// sellable inventory. Seats that are held or booked are left untouched.
func (s *service) SetBlocked(ctx context.Context, eventID uuid.UUID, req *BlockSeatsRequest) (*BlockSeatsResponse, error) {
	seatIDs, err := parseSeatIDList(req.SeatIDs)
	if err != nil {
		return nil, err
	}
	seatIDs = sortSeatIDs(seatIDs)

	var updated int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.GetForUpdate(ctx, eventID, seatIDs); err != nil {
			return fmt.Errorf("failed to lock seats: %w", err)
		}

		event, err := s.events.WithTx(tx).GetByID(ctx, eventID)
		if err != nil {
			return err
		}

		var txErr error
		if req.Blocked {
			updated, txErr = repo.UpdateStatus(ctx, seatIDs, []Status{StatusAvailable}, StatusBlocked)
			if txErr == nil && updated > 0 {
				txErr = s.capacity.Reserve(tx, eventID, int(updated), event.Version)
			}
		} else {
			updated, txErr = repo.UpdateStatus(ctx, seatIDs, []Status{StatusBlocked}, StatusAvailable)
			if txErr == nil && updated > 0 {
				txErr = s.capacity.Restore(tx, eventID, int(updated))
			}
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)

	return &BlockSeatsResponse{Updated: int(updated)}, nil
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	keys := []string{
		constants.BuildSeatMapKey(eventID.String()),
		constants.BuildSeatAvailabilityKey(eventID.String()),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "seat cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// parseSeatIDList parses raw seat ids, rejecting malformed and repeated
// entries.
func parseSeatIDList(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("invalid seat id %q", r))
		}
		if seen[id] {
			return nil, apperrors.Validation(fmt.Sprintf("duplicate seat id %q", r))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// effectiveHoldDuration resolves the requested hold length against the sweep
// TTL. A hold cannot outlive the sweeper, so the TTL is both the default and
// the ceiling.
func effectiveHoldDuration(requestedMinutes int, ttl time.Duration) time.Duration {
	if requestedMinutes <= 0 {
		return ttl
	}
	requested := time.Duration(requestedMinutes) * time.Minute
	if requested > ttl {
		return ttl
	}
	return requested
}

// expandGrid turns section specs into concrete seat rows.
func expandGrid(eventID uuid.UUID, req *GenerateSeatsRequest) []Seat {
	seats := make([]Seat, 0, req.TotalSeats())
	for _, section := range req.Sections {
		for row := 0; row < section.Rows; row++ {
			label := rowLabel(row)
			for number := 1; number <= section.SeatsPerRow; number++ {
				seats = append(seats, Seat{
					EventID: eventID,
					Section: section.Name,
					Row:     label,
					Number:  number,
					Price:   section.Price,
					Status:  StatusAvailable,
				})
			}
		}
	}
	return seats
}

// rowLabel converts a zero-based row index to A..Z, AA..AZ, BA.. spreadsheet
// style labels.
func rowLabel(index int) string {
	label := ""
	for index >= 0 {
		label = string(rowLabelAlphabet[index%26]) + label
		index = index/26 - 1
	}
	return label
}

// buildSeatMap groups seats section by section, row by row. Input is assumed
// ordered by (section, row, number), which both ListByEvent and expandGrid
// guarantee.
func buildSeatMap(eventID uuid.UUID, seats []Seat) *SeatMapResponse {
	resp := &SeatMapResponse{
		EventID:  eventID.String(),
		Sections: []SectionMap{},
		Counts:   make(map[Status]int),
	}

	for i := range seats {
		seat := &seats[i]
		resp.Counts[seat.Status]++

		if len(resp.Sections) == 0 || resp.Sections[len(resp.Sections)-1].Name != seat.Section {
			resp.Sections = append(resp.Sections, SectionMap{Name: seat.Section})
		}
		section := &resp.Sections[len(resp.Sections)-1]

		if len(section.Rows) == 0 || section.Rows[len(section.Rows)-1].Row != seat.Row {
			section.Rows = append(section.Rows, RowMap{Row: seat.Row})
		}
		row := &section.Rows[len(section.Rows)-1]

		row.Seats = append(row.Seats, seat.ToResponse())
	}

	return resp
}

func summarize(eventID uuid.UUID, counts map[Status]int) *AvailabilitySummary {
	summary := &AvailabilitySummary{
		EventID:   eventID.String(),
		Available: counts[StatusAvailable],
		Held:      counts[StatusHeld],
		Booked:    counts[StatusBooked],
		Blocked:   counts[StatusBlocked],
	}
	summary.Total = summary.Available + summary.Held + summary.Booked + summary.Blocked
	return summary
}
