package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event carries a version column so capacity mutations can be detected at
// commit time. AvailableCapacity reflects inventory not consumed by a PENDING
// or CONFIRMED booking nor by a HELD or BOOKED seat.
type Event struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name              string          `json:"name" gorm:"not null;size:255;index"`
	Description       string          `json:"description" gorm:"type:text"`
	Venue             string          `json:"venue" gorm:"not null;size:255"`
	EventDate         time.Time       `json:"event_date" gorm:"not null;index"`
	TotalCapacity     int             `json:"total_capacity" gorm:"not null;check:total_capacity > 0"`
	AvailableCapacity int             `json:"available_capacity" gorm:"not null;check:available_capacity >= 0"`
	BasePrice         decimal.Decimal `json:"base_price" gorm:"type:decimal(10,2);not null"`
	Price             decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;check:price >= 0"`
	HasSeatSelection  bool            `json:"has_seat_selection" gorm:"not null;default:false"`
	Version           int64           `json:"version" gorm:"not null;default:1"`
	IsActive          bool            `json:"is_active" gorm:"not null;default:true;index"`

	CreatedBy uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	UpdatedBy *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

// IsSoldOutFor reports whether the event cannot satisfy the requested
// quantity from its remaining inventory.
func (e *Event) IsSoldOutFor(quantity int) bool {
	return e.AvailableCapacity < quantity
}

// IsBookable reports whether new bookings may be created against the event.
func (e *Event) IsBookable(now time.Time) bool {
	return e.IsActive && e.EventDate.After(now)
}

// CapacityUtilization returns the sold share of total capacity in [0, 1].
func (e *Event) CapacityUtilization() float64 {
	if e.TotalCapacity <= 0 {
		return 0
	}
	return float64(e.TotalCapacity-e.AvailableCapacity) / float64(e.TotalCapacity)
}

type EventResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Venue             string          `json:"venue"`
	EventDate         time.Time       `json:"event_date"`
	TotalCapacity     int             `json:"total_capacity"`
	AvailableCapacity int             `json:"available_capacity"`
	BasePrice         decimal.Decimal `json:"base_price"`
	Price             decimal.Decimal `json:"price"`
	HasSeatSelection  bool            `json:"has_seat_selection"`
	IsActive          bool            `json:"is_active"`
	IsSoldOut         bool            `json:"is_sold_out"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type CreateEventRequest struct {
	Name             string          `json:"name" binding:"required,min=3,max=255"`
	Description      string          `json:"description" binding:"max=2000"`
	Venue            string          `json:"venue" binding:"required,min=3,max=255"`
	EventDate        time.Time       `json:"event_date" binding:"required"`
	TotalCapacity    int             `json:"total_capacity" binding:"required,min=1,max=100000"`
	Price            decimal.Decimal `json:"price" binding:"required"`
	HasSeatSelection bool            `json:"has_seat_selection"`
}

type UpdateEventRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=3,max=255"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
	Venue       *string          `json:"venue" binding:"omitempty,min=3,max=255"`
	EventDate   *time.Time       `json:"event_date"`
	Price       *decimal.Decimal `json:"price"`
	IsActive    *bool            `json:"is_active"`
}

type EventListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Venue    string `form:"venue"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Active   string `form:"active" binding:"omitempty,oneof=true false"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// Helper method to convert Event to EventResponse
func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:                e.ID.String(),
		Name:              e.Name,
		Description:       e.Description,
		Venue:             e.Venue,
		EventDate:         e.EventDate,
		TotalCapacity:     e.TotalCapacity,
		AvailableCapacity: e.AvailableCapacity,
		BasePrice:         e.BasePrice,
		Price:             e.Price,
		HasSeatSelection:  e.HasSeatSelection,
		IsActive:          e.IsActive,
		IsSoldOut:         e.AvailableCapacity == 0,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
