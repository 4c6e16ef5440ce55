package bookings

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/seats"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusPending.CanTransitionTo(StatusExpired))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusCancelled))

	assert.False(t, StatusConfirmed.CanTransitionTo(StatusExpired))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusConfirmed))
	assert.False(t, StatusExpired.CanTransitionTo(StatusPending))

	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
}

func TestGenerateBookingRef(t *testing.T) {
	pattern := regexp.MustCompile(`^TKT-\d{8}-[A-Z0-9]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref, err := generateBookingRef()
		require.NoError(t, err)
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}
	// 50 draws from a 36^6 space should not collide.
	assert.Len(t, seen, 50)
}

func TestIsExpiredAtBoundary(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	booking := &Booking{Status: StatusPending, ExpiresAt: &expiry}

	assert.False(t, booking.IsExpiredAt(expiry.Add(-time.Second)))
	// The expiry instant itself counts as expired.
	assert.True(t, booking.IsExpiredAt(expiry))
	assert.True(t, booking.IsExpiredAt(expiry.Add(time.Second)))

	confirmed := &Booking{Status: StatusConfirmed, ExpiresAt: &expiry}
	assert.False(t, confirmed.IsExpiredAt(expiry.Add(time.Hour)))

	noExpiry := &Booking{Status: StatusPending}
	assert.False(t, noExpiry.IsExpiredAt(expiry))
}

func TestToResponseHoldWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(15 * time.Minute)

	booking := &Booking{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		EventID:     uuid.New(),
		Quantity:    2,
		TotalAmount: decimal.NewFromFloat(99.98),
		Status:      StatusPending,
		BookingRef:  "TKT-20260301-ABC123",
		ExpiresAt:   &expiry,
		SeatBookings: []SeatBooking{
			{SeatID: uuid.New(), SeatPrice: decimal.NewFromFloat(49.99)},
			{SeatID: uuid.New(), SeatPrice: decimal.NewFromFloat(49.99)},
		},
	}

	resp := booking.ToResponse(now)
	assert.Equal(t, 15, resp.ExpiresInMinutes)
	assert.Len(t, resp.Seats, 2)
	assert.Equal(t, "TKT-20260301-ABC123", resp.BookingRef)

	// Past expiry the countdown disappears instead of going negative.
	resp = booking.ToResponse(now.Add(20 * time.Minute))
	assert.Zero(t, resp.ExpiresInMinutes)
}

func TestGroupDiscountTiers(t *testing.T) {
	assert.True(t, groupDiscount(2).IsZero())
	assert.True(t, groupDiscount(9).IsZero())
	assert.True(t, groupDiscount(10).Equal(decimal.NewFromFloat(0.05)))
	assert.True(t, groupDiscount(19).Equal(decimal.NewFromFloat(0.05)))
	assert.True(t, groupDiscount(20).Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, groupDiscount(50).Equal(decimal.NewFromFloat(0.15)))
	assert.True(t, groupDiscount(100).Equal(decimal.NewFromFloat(0.15)))
}

func TestResolveDiscountPicksBest(t *testing.T) {
	// Code beats a smaller group tier.
	pct, err := resolveDiscount(10, "EARLYBIRD")
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.20)))

	// Group tier beats a smaller code.
	pct, err = resolveDiscount(50, "BULK10")
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.15)))

	// Codes are case-insensitive.
	pct, err = resolveDiscount(2, "student")
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromFloat(0.25)))

	_, err = resolveDiscount(2, "BOGUS")
	assert.Error(t, err)
}

func makeRow(section, row string, numbers ...int) []seats.Seat {
	out := make([]seats.Seat, len(numbers))
	for i, n := range numbers {
		out[i] = seats.Seat{
			ID:      uuid.New(),
			Section: section,
			Row:     row,
			Number:  n,
			Status:  seats.StatusAvailable,
		}
	}
	return out
}

func TestContiguousRunPrefersAdjacentSeats(t *testing.T) {
	// Row A has a gap at 3; row B is fully open.
	open := append(makeRow("GA", "A", 1, 2, 4, 5), makeRow("GA", "B", 1, 2, 3, 4)...)

	ids := contiguousRun(open, 3)
	require.NotNil(t, ids)
	// Only row B has three consecutive numbers.
	assert.Equal(t, open[4].ID, ids[0])
	assert.Equal(t, open[5].ID, ids[1])
	assert.Equal(t, open[6].ID, ids[2])
}

func TestContiguousRunSpansNoRows(t *testing.T) {
	// A run must not cross a row boundary even when numbering continues.
	open := append(makeRow("GA", "A", 3, 4), makeRow("GA", "B", 5, 6)...)
	assert.Nil(t, contiguousRun(open, 3))

	// Pairs within a single row still qualify.
	ids := contiguousRun(open, 2)
	require.NotNil(t, ids)
	assert.Equal(t, open[0].ID, ids[0])
	assert.Equal(t, open[1].ID, ids[1])
}

func TestContiguousRunNoneAvailable(t *testing.T) {
	open := makeRow("GA", "A", 1, 3, 5, 7)
	assert.Nil(t, contiguousRun(open, 2))
	assert.Nil(t, contiguousRun(nil, 1))
}

func TestRandomCodeShapeAndAlphabet(t *testing.T) {
	code, err := randomCode(8)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), code)
}

func TestParseSeatIDs(t *testing.T) {
	ids, err := parseSeatIDs(nil)
	require.NoError(t, err)
	assert.Nil(t, ids)

	a, b := uuid.New(), uuid.New()
	ids, err = parseSeatIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = parseSeatIDs([]string{"not-a-uuid"})
	assert.Error(t, err)

	// A repeated id must be rejected, not silently collapsed: the booking's
	// quantity is validated against the raw list length.
	_, err = parseSeatIDs([]string{a.String(), a.String()})
	assert.Error(t, err)
}
