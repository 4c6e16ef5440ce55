package bookings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ticketly/internal/seats"
	"ticketly/internal/shared/apperrors"
	"ticketly/internal/shared/database"
	"ticketly/pkg/lock"
	"ticketly/pkg/logger"
)

// Bulk bookings reserve large groups in one shot: seats are auto-assigned
// (contiguous where possible), group-size and promo discounts apply, and the
// result is an ordinary PENDING booking confirmed through the normal flow.

type BulkBookingRequest struct {
	EventID          string `json:"event_id" binding:"required,uuid"`
	Quantity         int    `json:"quantity" binding:"required,min=2"`
	DiscountCode     string `json:"discount_code" binding:"omitempty,max=20"`
	PreferredSection string `json:"preferred_section" binding:"omitempty,max=50"`
}

type BulkBookingResponse struct {
	Booking          BookingResponse `json:"booking"`
	ConfirmationCode string          `json:"confirmation_code"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
}

// discountCodes maps promo codes to percentage discounts.
var discountCodes = map[string]decimal.Decimal{
	"BULK10":    decimal.NewFromFloat(0.10),
	"BULK15":    decimal.NewFromFloat(0.15),
	"EARLYBIRD": decimal.NewFromFloat(0.20),
	"STUDENT":   decimal.NewFromFloat(0.25),
}

// groupDiscount returns the size-based discount tier for a group.
func groupDiscount(quantity int) decimal.Decimal {
	switch {
	case quantity >= 50:
		return decimal.NewFromFloat(0.15)
	case quantity >= 20:
		return decimal.NewFromFloat(0.10)
	case quantity >= 10:
		return decimal.NewFromFloat(0.05)
	default:
		return decimal.Zero
	}
}

// resolveDiscount picks the better of the group tier and the promo code.
// Discounts do not stack. Unknown codes are a validation error rather than a
// silent zero.
func resolveDiscount(quantity int, code string) (decimal.Decimal, error) {
	best := groupDiscount(quantity)
	if code == "" {
		return best, nil
	}
	pct, ok := discountCodes[strings.ToUpper(code)]
	if !ok {
		return decimal.Zero, apperrors.Validation(fmt.Sprintf("unknown discount code %q", code))
	}
	if pct.GreaterThan(best) {
		best = pct
	}
	return best, nil
}

// CreateBulkBooking reserves a group of tickets under the event's bulk lock.
// Seated events get auto-assigned seats; the lock serializes assignment so
// two groups cannot pick the same block.
func (s *service) CreateBulkBooking(ctx context.Context, userID uuid.UUID, req *BulkBookingRequest) (*BulkBookingResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperrors.Validation("invalid event id")
	}
	if req.Quantity < s.booking.BulkMinQuantity || req.Quantity > s.booking.BulkMaxQuantity {
		return nil, apperrors.Validation(fmt.Sprintf(
			"bulk quantity must be between %d and %d", s.booking.BulkMinQuantity, s.booking.BulkMaxQuantity))
	}

	discountPct, err := resolveDiscount(req.Quantity, req.DiscountCode)
	if err != nil {
		return nil, err
	}

	confirmationCode, err := randomCode(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirmation code: %w", err)
	}

	// Bulk assignment reads the seat map before locking rows, so the whole
	// operation serializes on the event's bulk lock.
	var release func()
	if s.locks != nil {
		token, err := s.locks.AcquireWait(ctx, lock.BulkBookingKey(eventID), s.lockCfg.DefaultTTL, s.lockCfg.AcquireWait)
		if err != nil {
			return nil, err
		}
		release = func() {
			if _, err := s.locks.Release(context.WithoutCancel(ctx), lock.BulkBookingKey(eventID), token); err != nil {
				logger.GetDefault().DebugWithContext(ctx, "bulk booking lock release failed", map[string]interface{}{
					"event_id": eventID.String(),
				})
			}
		}
		defer release()
	}

	var booking *Booking
	var originalAmount decimal.Decimal

	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		event, txErr := s.events.WithTx(tx).GetByID(ctx, eventID)
		if txErr != nil {
			return txErr
		}

		var seatIDs []uuid.UUID
		if event.HasSeatSelection {
			seatIDs, txErr = s.assignSeatBlock(ctx, tx, eventID, req.Quantity, req.PreferredSection)
			if txErr != nil {
				return txErr
			}
		}

		details := map[string]interface{}{
			"bulk":              true,
			"confirmation_code": confirmationCode,
		}
		if req.DiscountCode != "" {
			details["discount_code"] = strings.ToUpper(req.DiscountCode)
		}

		created, txErr := s.createInTx(ctx, tx, userID, eventID, req.Quantity, seatIDs, details)
		if txErr != nil {
			return txErr
		}

		originalAmount = created.TotalAmount
		if discountPct.IsPositive() {
			discounted := originalAmount.
				Mul(decimal.NewFromInt(1).Sub(discountPct)).
				Round(2)
			if txErr := tx.Model(&Booking{}).
				Where("id = ?", created.ID).
				Update("total_amount", discounted).Error; txErr != nil {
				return fmt.Errorf("failed to apply bulk discount: %w", txErr)
			}
			created.TotalAmount = discounted

			if txErr := s.appendHistory(ctx, tx, created.ID, ActionModified, database.JSONMap{
				"discount_percent": discountPct.String(),
				"original_amount":  originalAmount.String(),
				"final_amount":     discounted.String(),
			}, &userID); txErr != nil {
				return txErr
			}
		}

		booking = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogBookingCreated(ctx, booking.ID.String(), eventID.String(), userID.String(), booking.Quantity)

	return &BulkBookingResponse{
		Booking:          booking.ToResponse(s.now()),
		ConfirmationCode: confirmationCode,
		OriginalAmount:   originalAmount,
		DiscountPercent:  discountPct.Mul(decimal.NewFromInt(100)).Round(0),
		DiscountAmount:   originalAmount.Sub(booking.TotalAmount).Round(2),
	}, nil
}

// assignSeatBlock picks quantity seats for a group: a contiguous run of seat
// numbers within one row when one exists, otherwise the first open seats in
// map order. preferredSection narrows the search when it has enough space.
func (s *service) assignSeatBlock(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, quantity int, preferredSection string) ([]uuid.UUID, error) {
	all, err := s.seatRepo.WithTx(tx).ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	open := make([]seats.Seat, 0, len(all))
	for _, seat := range all {
		if seat.IsHoldable() {
			open = append(open, seat)
		}
	}

	if preferredSection != "" {
		preferred := filterSection(open, preferredSection)
		if len(preferred) >= quantity {
			open = preferred
		}
	}

	if len(open) < quantity {
		return nil, apperrors.Inventory(apperrors.CodeInsufficientSeats,
			fmt.Sprintf("only %d seats available, %d requested", len(open), quantity)).
			WithDetail("event_id", eventID.String())
	}

	if run := contiguousRun(open, quantity); run != nil {
		return run, nil
	}

	ids := make([]uuid.UUID, quantity)
	for i := 0; i < quantity; i++ {
		ids[i] = open[i].ID
	}
	return ids, nil
}

func filterSection(open []seats.Seat, section string) []seats.Seat {
	var out []seats.Seat
	for _, seat := range open {
		if strings.EqualFold(seat.Section, section) {
			out = append(out, seat)
		}
	}
	return out
}

// contiguousRun finds the first run of quantity seats with consecutive
// numbers within a single section and row. Input must be in map order
// (section, row, number). Returns nil when no row has a long enough run.
func contiguousRun(open []seats.Seat, quantity int) []uuid.UUID {
	runStart := 0
	for i := 1; i <= len(open); i++ {
		if i < len(open) &&
			open[i].Section == open[i-1].Section &&
			open[i].Row == open[i-1].Row &&
			open[i].Number == open[i-1].Number+1 {
			if i-runStart+1 >= quantity {
				ids := make([]uuid.UUID, quantity)
				for j := 0; j < quantity; j++ {
					ids[j] = open[i-quantity+1+j].ID
				}
				return ids
			}
			continue
		}
		runStart = i
	}
	return nil
}
