package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketly/internal/events"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/constants"
	"ticketly/pkg/cache"
	"ticketly/pkg/logger"
)

// Service drives demand-based price adjustments. A tick walks every active
// future event, evaluates the pure pricing function against observed demand,
// and persists the result only when it clears the change gate.
type Service interface {
	// EvaluateEvent previews the evaluation without writing anything.
	EvaluateEvent(ctx context.Context, eventID uuid.UUID) (*EvaluationResponse, error)

	// Tick evaluates all active future events; each event is its own unit of
	// work, so one failure does not halt the sweep. Returns how many prices
	// were persisted.
	Tick(ctx context.Context) (int, error)

	ListChanges(ctx context.Context, eventID uuid.UUID, limit int) ([]PriceChangeResponse, error)
}

type service struct {
	repo   Repository
	events events.Repository
	cache  cache.Service
	cfg    config.PricingConfig

	now func() time.Time
}

func NewService(repo Repository, eventsRepo events.Repository, cacheService cache.Service, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		events: eventsRepo,
		cache:  cacheService,
		cfg:    cfg.Pricing,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) EvaluateEvent(ctx context.Context, eventID uuid.UUID) (*EvaluationResponse, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	eval, err := s.evaluate(ctx, event)
	if err != nil {
		return nil, err
	}
	return s.toResponse(event, eval, false), nil
}

func (s *service) Tick(ctx context.Context) (int, error) {
	active, err := s.events.ListActiveFuture(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list active events: %w", err)
	}

	persisted := 0
	for i := range active {
		event := &active[i]
		wrote, err := s.tickEvent(ctx, event)
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to reprice event", err, map[string]interface{}{
				"event_id": event.ID.String(),
			})
			continue
		}
		if wrote {
			persisted++
		}
	}
	return persisted, nil
}

// tickEvent evaluates one event and writes the new price and audit row when
// the change clears the gate. Reports whether a price was written.
func (s *service) tickEvent(ctx context.Context, event *events.Event) (bool, error) {
	eval, err := s.evaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if !eval.ShouldPersist(s.cfg) {
		return false, nil
	}

	if err := s.events.UpdatePrice(ctx, event.ID, eval.NewPrice); err != nil {
		return false, fmt.Errorf("failed to update price: %w", err)
	}

	change := &PriceChange{
		EventID:            event.ID,
		OldPrice:           event.Price,
		NewPrice:           eval.NewPrice,
		ChangePercent:      eval.ChangePercent,
		DemandMultiplier:   eval.Demand,
		TimeMultiplier:     eval.Time,
		VelocityMultiplier: eval.Velocity,
		WaitlistMultiplier: eval.Waitlist,
		CombinedMultiplier: eval.Combined,
		Reason:             eval.Reason,
		EvaluatedAt:        s.now(),
	}
	if err := s.repo.CreateChange(ctx, change); err != nil {
		return false, fmt.Errorf("failed to record price change: %w", err)
	}

	s.invalidateEventCache(ctx, event.ID)

	logger.GetDefault().InfoWithContext(ctx, "event repriced", map[string]interface{}{
		"event_id":       event.ID.String(),
		"old_price":      event.Price.String(),
		"new_price":      eval.NewPrice.String(),
		"change_percent": eval.ChangePercent.String(),
	})
	return true, nil
}

func (s *service) ListChanges(ctx context.Context, eventID uuid.UUID, limit int) ([]PriceChangeResponse, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	changes, err := s.repo.ListChanges(ctx, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price changes: %w", err)
	}

	responses := make([]PriceChangeResponse, len(changes))
	for i := range changes {
		responses[i] = changes[i].ToResponse()
	}
	return responses, nil
}

func (s *service) evaluate(ctx context.Context, event *events.Event) (Evaluation, error) {
	now := s.now()

	recent, err := s.repo.CountBookingsBetween(ctx, event.ID, now.AddDate(0, 0, -7), now)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to count recent bookings: %w", err)
	}
	previous, err := s.repo.CountBookingsBetween(ctx, event.ID, now.AddDate(0, 0, -14), now.AddDate(0, 0, -7))
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to count previous bookings: %w", err)
	}
	waitlistSize, err := s.repo.WaitlistSize(ctx, event.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to read waitlist size: %w", err)
	}

	inputs := Inputs{
		BasePrice:         event.BasePrice,
		CurrentPrice:      event.Price,
		TotalCapacity:     event.TotalCapacity,
		AvailableCapacity: event.AvailableCapacity,
		DaysUntilEvent:    int(event.EventDate.Sub(now).Hours() / 24),
		RecentBookings:    recent,
		PreviousBookings:  previous,
		WaitlistSize:      waitlistSize,
	}
	return Evaluate(inputs, s.cfg), nil
}

func (s *service) toResponse(event *events.Event, eval Evaluation, persisted bool) *EvaluationResponse {
	return &EvaluationResponse{
		EventID:       event.ID.String(),
		OldPrice:      event.Price,
		NewPrice:      eval.NewPrice,
		ChangePercent: eval.ChangePercent,
		Persisted:     persisted,
		Reason:        eval.Reason,
		Multipliers: MultiplierBreakdown{
			Demand:   eval.Demand,
			Time:     eval.Time,
			Velocity: eval.Velocity,
			Waitlist: eval.Waitlist,
			Combined: eval.Combined,
		},
	}
}

func (s *service) invalidateEventCache(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, constants.BuildEventDetailKey(eventID.String())); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "failed to invalidate event detail cache", map[string]interface{}{
			"event_id": eventID.String(),
		})
	}
	if err := s.cache.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENT_LISTS); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "failed to invalidate event list cache", nil)
	}
}
