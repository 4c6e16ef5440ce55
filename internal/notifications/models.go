package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntentType enumerates the outbound notification intents the engine emits
// after a successful commit. The core records the intent; delivery (email,
// SMS) belongs to downstream consumers.
type IntentType string

const (
	IntentBookingConfirmation  IntentType = "BOOKING_CONFIRMATION"
	IntentBookingCancellation  IntentType = "BOOKING_CANCELLATION"
	IntentWaitlistAvailability IntentType = "WAITLIST_AVAILABILITY"
	IntentEventCancellation    IntentType = "EVENT_CANCELLATION"
	IntentEventUpdate          IntentType = "EVENT_UPDATE"
)

// IntentPriority orders delivery work downstream.
type IntentPriority string

const (
	PriorityLow      IntentPriority = "LOW"
	PriorityMedium   IntentPriority = "MEDIUM"
	PriorityHigh     IntentPriority = "HIGH"
	PriorityCritical IntentPriority = "CRITICAL"
)

// Intent is the wire shape of a single notification intent. Delivery is
// at-least-once; consumers must tolerate duplicates keyed by ID.
type Intent struct {
	ID       uuid.UUID      `json:"id"`
	Type     IntentType     `json:"type"`
	Priority IntentPriority `json:"priority"`

	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	EventID         *uuid.UUID `json:"event_id,omitempty"`
	WaitlistEntryID *uuid.UUID `json:"waitlist_entry_id,omitempty"`

	// Payload carries template data for the eventual message.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Deadline is the booking window for waitlist availability intents.
	Deadline *time.Time `json:"deadline,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ToJSON serializes the intent for transport.
func (i *Intent) ToJSON() ([]byte, error) {
	return json.Marshal(i)
}

// IntentFromJSON deserializes a transported intent.
func IntentFromJSON(data []byte) (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// PartitionKey routes intents for the same aggregate to the same partition so
// per-booking and per-event ordering survives transport.
func (i *Intent) PartitionKey() string {
	switch {
	case i.BookingID != nil:
		return i.BookingID.String()
	case i.WaitlistEntryID != nil:
		return i.WaitlistEntryID.String()
	case i.EventID != nil:
		return i.EventID.String()
	default:
		return i.ID.String()
	}
}

func defaultPriority(t IntentType) IntentPriority {
	switch t {
	case IntentWaitlistAvailability:
		return PriorityCritical
	case IntentBookingConfirmation, IntentEventCancellation:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func newIntent(t IntentType) *Intent {
	return &Intent{
		ID:        uuid.New(),
		Type:      t,
		Priority:  defaultPriority(t),
		Payload:   make(map[string]interface{}),
		CreatedAt: time.Now().UTC(),
	}
}

// BookingConfirmation builds the intent emitted after a booking is confirmed.
func BookingConfirmation(bookingID, eventID uuid.UUID, payload map[string]interface{}) *Intent {
	intent := newIntent(IntentBookingConfirmation)
	intent.BookingID = &bookingID
	intent.EventID = &eventID
	mergePayload(intent, payload)
	return intent
}

// BookingCancellation builds the intent emitted after a booking is cancelled.
func BookingCancellation(bookingID, eventID uuid.UUID, payload map[string]interface{}) *Intent {
	intent := newIntent(IntentBookingCancellation)
	intent.BookingID = &bookingID
	intent.EventID = &eventID
	mergePayload(intent, payload)
	return intent
}

// WaitlistAvailability builds the intent emitted when capacity is offered to
// a waitlist entry. Deadline is the end of the entry's booking window.
func WaitlistAvailability(entryID, eventID uuid.UUID, availableQuantity int, deadline time.Time) *Intent {
	intent := newIntent(IntentWaitlistAvailability)
	intent.WaitlistEntryID = &entryID
	intent.EventID = &eventID
	intent.Deadline = &deadline
	intent.Payload["available_quantity"] = availableQuantity
	return intent
}

// EventCancellation builds the intent emitted when an event with pending
// bookings is deactivated or deleted.
func EventCancellation(eventID uuid.UUID, payload map[string]interface{}) *Intent {
	intent := newIntent(IntentEventCancellation)
	intent.EventID = &eventID
	mergePayload(intent, payload)
	return intent
}

// EventUpdate builds the intent emitted when a booked event changes in a way
// attendees must hear about (date moves in particular).
func EventUpdate(eventID uuid.UUID, message string) *Intent {
	intent := newIntent(IntentEventUpdate)
	intent.EventID = &eventID
	intent.Payload["message"] = message
	return intent
}

func mergePayload(intent *Intent, payload map[string]interface{}) {
	for k, v := range payload {
		intent.Payload[k] = v
	}
}
