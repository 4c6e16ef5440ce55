package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketly/internal/notifications"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/constants"
	"ticketly/pkg/cache"
	"ticketly/pkg/logger"
)

// Booking statuses consulted when deciding whether an event may be deleted or
// must notify attendees. Queried by name to keep this package below bookings
// in the dependency order.
const (
	bookingStatusPending   = "PENDING"
	bookingStatusConfirmed = "CONFIRMED"
)

type Service interface {
	CreateEvent(ctx context.Context, adminID uuid.UUID, req *CreateEventRequest) (*EventResponse, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	ListEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error)
	GetUpcomingEvents(ctx context.Context, page, limit int) (*PaginatedEvents, error)
	GetPopularEvents(ctx context.Context, limit int) ([]EventResponse, error)
	UpdateEvent(ctx context.Context, adminID uuid.UUID, id uuid.UUID, req *UpdateEventRequest) (*EventResponse, error)
	DeactivateEvent(ctx context.Context, adminID uuid.UUID, id uuid.UUID) (*EventResponse, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo      Repository
	cache     cache.Service
	publisher notifications.Publisher
}

func NewService(repo Repository, cacheService cache.Service, publisher notifications.Publisher) Service {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	return &service{
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
	}
}

func (s *service) CreateEvent(ctx context.Context, adminID uuid.UUID, req *CreateEventRequest) (*EventResponse, error) {
	if !req.EventDate.After(time.Now()) {
		return nil, apperrors.Validation("event date must be in the future")
	}
	if req.Price.IsNegative() {
		return nil, apperrors.Validation("price must not be negative")
	}

	event := &Event{
		Name:              req.Name,
		Description:       req.Description,
		Venue:             req.Venue,
		EventDate:         req.EventDate,
		TotalCapacity:     req.TotalCapacity,
		AvailableCapacity: req.TotalCapacity,
		BasePrice:         req.Price,
		Price:             req.Price,
		HasSeatSelection:  req.HasSeatSelection,
		Version:           1,
		IsActive:          true,
		CreatedBy:         adminID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.invalidateListCaches(ctx)

	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	var resp EventResponse

	if s.cache != nil {
		key := constants.BuildEventDetailKey(id.String())
		err := s.cache.GetOrSet(ctx, key, constants.TTL_EVENT_DETAIL, func() (interface{}, error) {
			event, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return event.ToResponse(), nil
		}, &resp)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp = event.ToResponse()
	return &resp, nil
}

func (s *service) ListEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	// Only unfiltered pages are worth caching; filtered queries vary too much
	cacheable := s.cache != nil && query.Search == "" && query.Venue == "" &&
		query.DateFrom == "" && query.DateTo == ""

	if cacheable {
		var cached PaginatedEvents
		key := constants.BuildEventListKey(query.Page, query.Limit, query.Active)
		err := s.cache.GetOrSet(ctx, key, constants.TTL_EVENT_LIST, func() (interface{}, error) {
			return s.listEvents(ctx, query)
		}, &cached)
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	return s.listEvents(ctx, query)
}

func (s *service) listEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error) {
	eventList, totalCount, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	responses := make([]EventResponse, len(eventList))
	for i := range eventList {
		responses[i] = eventList[i].ToResponse()
	}

	return &PaginatedEvents{
		Events:     responses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages(totalCount, query.Limit),
	}, nil
}

func (s *service) GetUpcomingEvents(ctx context.Context, page, limit int) (*PaginatedEvents, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	fetch := func() (interface{}, error) {
		// Upcoming is a bounded window; fetch page*limit and slice
		eventList, err := s.repo.GetUpcoming(ctx, page*limit)
		if err != nil {
			return nil, err
		}

		start := (page - 1) * limit
		if start > len(eventList) {
			start = len(eventList)
		}
		pageEvents := eventList[start:]

		responses := make([]EventResponse, len(pageEvents))
		for i := range pageEvents {
			responses[i] = pageEvents[i].ToResponse()
		}
		return &PaginatedEvents{
			Events:     responses,
			TotalCount: int64(len(eventList)),
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages(int64(len(eventList)), limit),
		}, nil
	}

	if s.cache != nil {
		var cached PaginatedEvents
		key := constants.BuildUpcomingKey(page, limit)
		if err := s.cache.GetOrSet(ctx, key, constants.TTL_UPCOMING, fetch, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	return result.(*PaginatedEvents), nil
}

func (s *service) GetPopularEvents(ctx context.Context, limit int) ([]EventResponse, error) {
	if limit <= 0 {
		limit = 5
	}

	fetch := func() (interface{}, error) {
		eventList, err := s.repo.GetPopular(ctx, limit)
		if err != nil {
			return nil, err
		}
		responses := make([]EventResponse, len(eventList))
		for i := range eventList {
			responses[i] = eventList[i].ToResponse()
		}
		return responses, nil
	}

	if s.cache != nil {
		var cached []EventResponse
		key := constants.BuildPopularKey(limit)
		if err := s.cache.GetOrSet(ctx, key, constants.TTL_POPULAR, fetch, &cached); err != nil {
			return nil, err
		}
		return cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	return result.([]EventResponse), nil
}

func (s *service) UpdateEvent(ctx context.Context, adminID uuid.UUID, id uuid.UUID, req *UpdateEventRequest) (*EventResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_by": adminID}
	dateChanged := false

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.EventDate != nil && !req.EventDate.Equal(current.EventDate) {
		if !req.EventDate.After(time.Now()) {
			return nil, apperrors.Validation("event date must be in the future")
		}
		updates["event_date"] = *req.EventDate
		dateChanged = true
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, apperrors.Validation("price must not be negative")
		}
		// Admin repricing resets the dynamic pricing baseline
		updates["price"] = *req.Price
		updates["base_price"] = *req.Price
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	s.invalidateEventCaches(ctx, id)

	// A date move must reach everyone already booked
	if dateChanged {
		if booked, err := s.repo.HasActiveBookings(ctx, id, bookingStatusPending, bookingStatusConfirmed); err == nil && booked {
			message := fmt.Sprintf("Event %q was rescheduled to %s", updated.Name, updated.EventDate.Format(time.RFC1123))
			s.publish(ctx, notifications.EventUpdate(id, message))
		}
	}

	resp := updated.ToResponse()
	return &resp, nil
}

func (s *service) DeactivateEvent(ctx context.Context, adminID uuid.UUID, id uuid.UUID) (*EventResponse, error) {
	updated, err := s.repo.Update(ctx, id, map[string]interface{}{
		"is_active":  false,
		"updated_by": adminID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEventCaches(ctx, id)

	if booked, err := s.repo.HasActiveBookings(ctx, id, bookingStatusPending, bookingStatusConfirmed); err == nil && booked {
		s.publish(ctx, notifications.EventCancellation(id, map[string]interface{}{
			"event_name": updated.Name,
		}))
	}

	resp := updated.ToResponse()
	return &resp, nil
}

func (s *service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	confirmed, err := s.repo.HasActiveBookings(ctx, id, bookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to check bookings: %w", err)
	}
	if confirmed {
		return apperrors.BusinessState(apperrors.CodeEventHasBookings,
			"event has confirmed bookings and cannot be deleted").
			WithDetail("event_id", id.String())
	}

	pending, err := s.repo.HasActiveBookings(ctx, id, bookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to check bookings: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateEventCaches(ctx, id)

	if pending {
		s.publish(ctx, notifications.EventCancellation(id, map[string]interface{}{
			"event_name": event.Name,
		}))
	}

	return nil
}

// publish emits an intent without letting transport trouble fail the request.
func (s *service) publish(ctx context.Context, intent *notifications.Intent) {
	if err := s.publisher.Publish(ctx, intent); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to publish intent", err, map[string]interface{}{
			"intent_type": string(intent.Type),
		})
	}
}

func (s *service) invalidateListCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENTS_ALL); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "event list cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *service) invalidateEventCaches(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	keys := []string{constants.BuildEventDetailKey(id.String())}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.GetDefault().DebugWithContext(ctx, "event cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.invalidateListCaches(ctx)
}

func totalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(totalCount) / limit
	if int(totalCount)%limit != 0 {
		pages++
	}
	return pages
}
