package waitlist

import (
	"time"

	"github.com/google/uuid"

	"ticketly/internal/shared/database"
)

// Status is the lifecycle state of a waitlist entry. Entries are created
// ACTIVE; NOTIFIED entries either convert or return to ACTIVE at the tail
// when their booking window lapses. CONVERTED and EXPIRED are terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusNotified  Status = "NOTIFIED"
	StatusExpired   Status = "EXPIRED"
	StatusConverted Status = "CONVERTED"
)

var validTransitions = map[Status][]Status{
	StatusActive:    {StatusNotified, StatusExpired},
	StatusNotified:  {StatusConverted, StatusActive, StatusExpired},
	StatusExpired:   {},
	StatusConverted: {},
}

// IsValid checks if the waitlist status is valid
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// nonTerminalStatuses is the predicate set for queue membership. Positions
// form a contiguous 1..k sequence over exactly these rows per event.
var nonTerminalStatuses = []Status{StatusActive, StatusNotified}

// Entry is one user's place in an event's FIFO waitlist.
type Entry struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_waitlist_user_event"`
	EventID  uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index:idx_waitlist_user_event;index"`
	Quantity int       `json:"quantity" gorm:"not null;check:quantity > 0"`
	Position int       `json:"position" gorm:"not null;index"`
	Status   Status    `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE';index"`

	Preferences database.JSONMap `json:"preferences,omitempty" gorm:"type:jsonb"`

	JoinedAt   time.Time  `json:"joined_at" gorm:"not null"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Entry
func (Entry) TableName() string {
	return "waitlist"
}

// IsActive reports whether the entry is waiting in the queue.
func (e *Entry) IsActive() bool {
	return e.Status == StatusActive
}

// IsNotified reports whether the entry currently holds a booking window.
func (e *Entry) IsNotified() bool {
	return e.Status == StatusNotified
}

// WindowRemaining returns the time left in the booking window, nil when no
// window is open.
func (e *Entry) WindowRemaining(now time.Time) *time.Duration {
	if e.Status != StatusNotified || e.ExpiresAt == nil {
		return nil
	}
	remaining := e.ExpiresAt.Sub(now)
	if remaining < 0 {
		return nil
	}
	return &remaining
}

// Request/Response models

type JoinWaitlistRequest struct {
	EventID     string                 `json:"event_id" binding:"required,uuid"`
	Quantity    int                    `json:"quantity" binding:"required,min=1"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
}

type EntryResponse struct {
	ID               string                 `json:"id"`
	EventID          string                 `json:"event_id"`
	Position         int                    `json:"position"`
	Quantity         int                    `json:"quantity"`
	Status           Status                 `json:"status"`
	Preferences      map[string]interface{} `json:"preferences,omitempty"`
	JoinedAt         time.Time              `json:"joined_at"`
	NotifiedAt       *time.Time             `json:"notified_at,omitempty"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
	WindowRemainingS int                    `json:"window_remaining_seconds,omitempty"`
}

type LeaveResponse struct {
	Removed bool `json:"removed"`
}

type StatsResponse struct {
	EventID        string `json:"event_id"`
	ActiveCount    int    `json:"active_count"`
	NotifiedCount  int    `json:"notified_count"`
	ConvertedCount int    `json:"converted_count"`
	ExpiredCount   int    `json:"expired_count"`
	QueueLength    int    `json:"queue_length"`
}

// ToResponse converts an entry for API output.
func (e *Entry) ToResponse(now time.Time) EntryResponse {
	resp := EntryResponse{
		ID:          e.ID.String(),
		EventID:     e.EventID.String(),
		Position:    e.Position,
		Quantity:    e.Quantity,
		Status:      e.Status,
		Preferences: e.Preferences,
		JoinedAt:    e.JoinedAt,
		NotifiedAt:  e.NotifiedAt,
		ExpiresAt:   e.ExpiresAt,
	}
	if remaining := e.WindowRemaining(now); remaining != nil {
		resp.WindowRemainingS = int(remaining.Seconds())
	}
	return resp
}
