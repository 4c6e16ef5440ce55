package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketly/internal/shared/database"
)

// Booking is the aggregate root of a purchase. PENDING bookings always carry
// an expiry; the expiry is cleared on every transition out of PENDING.
type Booking struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	UserID      uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	EventID     uuid.UUID       `json:"event_id" gorm:"type:uuid;not null;index"`
	Quantity    int             `json:"quantity" gorm:"not null;check:quantity > 0"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Status      Status          `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	BookingRef  string          `json:"booking_ref" gorm:"unique;not null;size:20"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	SeatBookings []SeatBooking `json:"seat_bookings,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// SeatBooking links a booking to one reserved seat. Rows exist exactly while
// the booking owns specific seats.
type SeatBooking struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BookingID uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_seat"`
	SeatID    uuid.UUID       `json:"seat_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_seat"`
	SeatPrice decimal.Decimal `json:"seat_price" gorm:"type:decimal(10,2);not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// BookingHistory is the append-only audit log of a booking.
type BookingHistory struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BookingID   uuid.UUID        `json:"booking_id" gorm:"type:uuid;not null;index"`
	Action      HistoryAction    `json:"action" gorm:"type:varchar(20);not null"`
	Details     database.JSONMap `json:"details,omitempty" gorm:"type:jsonb"`
	PerformedBy *uuid.UUID       `json:"performed_by,omitempty" gorm:"type:uuid"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for SeatBooking
func (SeatBooking) TableName() string {
	return "seat_bookings"
}

// TableName sets the table name for BookingHistory
func (BookingHistory) TableName() string {
	return "booking_history"
}

// Helper methods for booking management
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// IsExpiredAt reports whether the pending hold has lapsed as of now. The
// instant expiresAt itself counts as expired.
func (b *Booking) IsExpiredAt(now time.Time) bool {
	return b.Status == StatusPending && b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// HasSeats reports whether the booking reserved specific seats.
func (b *Booking) HasSeats() bool {
	return len(b.SeatBookings) > 0
}

// SeatIDs returns the ids of the booking's reserved seats.
func (b *Booking) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.SeatBookings))
	for i, sb := range b.SeatBookings {
		ids[i] = sb.SeatID
	}
	return ids
}

// Request/Response models

type CreateBookingRequest struct {
	EventID  string   `json:"event_id" binding:"required,uuid"`
	Quantity int      `json:"quantity" binding:"required,min=1"`
	SeatIDs  []string `json:"seat_ids" binding:"omitempty,min=1"`
}

type ConfirmBookingRequest struct {
	PaymentReference string `json:"payment_reference" binding:"omitempty,max=100"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type BookingResponse struct {
	ID               string           `json:"id"`
	BookingRef       string           `json:"booking_ref"`
	UserID           string           `json:"user_id"`
	EventID          string           `json:"event_id"`
	Quantity         int              `json:"quantity"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	Status           Status           `json:"status"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	ExpiresInMinutes int              `json:"expires_in_minutes,omitempty"`
	RefundAmount     *decimal.Decimal `json:"refund_amount,omitempty"`
	Seats            []BookedSeatInfo `json:"seats,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type BookedSeatInfo struct {
	SeatID string          `json:"seat_id"`
	Price  decimal.Decimal `json:"price"`
}

type HistoryResponse struct {
	Action      HistoryAction          `json:"action"`
	Details     map[string]interface{} `json:"details,omitempty"`
	PerformedBy *string                `json:"performed_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type BookingListQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING CONFIRMED CANCELLED EXPIRED"`
	EventID   string `form:"event_id" binding:"omitempty,uuid"`
	Timeframe string `form:"timeframe" binding:"omitempty,oneof=upcoming past"`
}

type PaginatedBookings struct {
	Bookings   []BookingResponse `json:"bookings"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ToResponse converts a booking for API output. now drives the remaining
// hold window shown to the client.
func (b *Booking) ToResponse(now time.Time) BookingResponse {
	resp := BookingResponse{
		ID:          b.ID.String(),
		BookingRef:  b.BookingRef,
		UserID:      b.UserID.String(),
		EventID:     b.EventID.String(),
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount,
		Status:      b.Status,
		ExpiresAt:   b.ExpiresAt,
		CreatedAt:   b.CreatedAt,
	}

	if b.Status == StatusPending && b.ExpiresAt != nil && b.ExpiresAt.After(now) {
		resp.ExpiresInMinutes = int(b.ExpiresAt.Sub(now).Round(time.Minute).Minutes())
	}

	for _, sb := range b.SeatBookings {
		resp.Seats = append(resp.Seats, BookedSeatInfo{
			SeatID: sb.SeatID.String(),
			Price:  sb.SeatPrice,
		})
	}

	return resp
}

func (h *BookingHistory) ToResponse() HistoryResponse {
	resp := HistoryResponse{
		Action:    h.Action,
		Details:   h.Details,
		CreatedAt: h.CreatedAt,
	}
	if h.PerformedBy != nil {
		performer := h.PerformedBy.String()
		resp.PerformedBy = &performer
	}
	return resp
}
