package seats

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a single seat. HELD carries an implicit
// expiry: the sweeper frees any seat held longer than the configured TTL.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusHeld      Status = "HELD"
	StatusBooked    Status = "BOOKED"
	StatusBlocked   Status = "BLOCKED"
)

// Seat belongs to exactly one event and is identified within it by its
// (section, row, number) coordinates.
type Seat struct {
	ID      uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID uuid.UUID       `json:"event_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_event_seat_position"`
	Section string          `json:"section" gorm:"not null;size:100;uniqueIndex:idx_event_seat_position"`
	Row     string          `json:"row" gorm:"not null;size:10;uniqueIndex:idx_event_seat_position"`
	Number  int             `json:"number" gorm:"not null;uniqueIndex:idx_event_seat_position"`
	Price   decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Status  Status          `json:"status" gorm:"type:varchar(20);not null;default:'AVAILABLE';index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;index"`
}

// TableName specifies the table name for GORM
func (Seat) TableName() string {
	return "seats"
}

func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// IsHoldable reports whether the seat may enter HELD.
func (s *Seat) IsHoldable() bool {
	return s.Status == StatusAvailable
}

// IsBookable reports whether the seat may enter BOOKED directly.
func (s *Seat) IsBookable() bool {
	return s.Status == StatusAvailable || s.Status == StatusHeld
}

type SeatResponse struct {
	ID      string          `json:"id"`
	Section string          `json:"section"`
	Row     string          `json:"row"`
	Number  int             `json:"number"`
	Price   decimal.Decimal `json:"price"`
	Status  Status          `json:"status"`
}

func (s *Seat) ToResponse() SeatResponse {
	return SeatResponse{
		ID:      s.ID.String(),
		Section: s.Section,
		Row:     s.Row,
		Number:  s.Number,
		Price:   s.Price,
		Status:  s.Status,
	}
}

// SeatMapResponse groups an event's seats section by section, row by row,
// the shape rendered directly by seat-picker clients.
type SeatMapResponse struct {
	EventID  string         `json:"event_id"`
	Sections []SectionMap   `json:"sections"`
	Counts   map[Status]int `json:"counts"`
}

type SectionMap struct {
	Name string   `json:"name"`
	Rows []RowMap `json:"rows"`
}

type RowMap struct {
	Row   string         `json:"row"`
	Seats []SeatResponse `json:"seats"`
}

// AvailabilitySummary is the cheap per-event counter view.
type AvailabilitySummary struct {
	EventID   string `json:"event_id"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Held      int    `json:"held"`
	Booked    int    `json:"booked"`
	Blocked   int    `json:"blocked"`
}

// GenerateSeatsRequest describes a rectangular grid per section. Rows are
// labelled A, B, C... in order; seats are numbered 1..SeatsPerRow.
type GenerateSeatsRequest struct {
	Sections []SectionSpec `json:"sections" binding:"required,min=1,dive"`
}

type SectionSpec struct {
	Name        string          `json:"name" binding:"required,min=1,max=100"`
	Rows        int             `json:"rows" binding:"required,min=1,max=100"`
	SeatsPerRow int             `json:"seats_per_row" binding:"required,min=1,max=200"`
	Price       decimal.Decimal `json:"price" binding:"required"`
}

// TotalSeats returns the number of seats the grid would create.
func (r *GenerateSeatsRequest) TotalSeats() int {
	total := 0
	for _, section := range r.Sections {
		total += section.Rows * section.SeatsPerRow
	}
	return total
}

// HoldSeatsRequest reserves a group of seats ahead of checkout. The duration
// is optional; absent, the configured hold TTL applies.
type HoldSeatsRequest struct {
	SeatIDs             []string `json:"seat_ids" binding:"required,min=1,max=100"`
	HoldDurationMinutes int      `json:"hold_duration_minutes" binding:"omitempty,min=1,max=60"`
}

type HoldSeatsResponse struct {
	HeldSeatIDs []string  `json:"held_seat_ids"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ReleaseSeatsRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,max=100"`
}

type ReleaseSeatsResponse struct {
	ReleasedCount int `json:"released_count"`
}

type BlockSeatsRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,max=100"`
	Blocked bool     `json:"blocked"`
}

type BlockSeatsResponse struct {
	Updated int `json:"updated"`
}
