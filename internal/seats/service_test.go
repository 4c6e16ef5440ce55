package seats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/shared/apperrors"
)

func TestRowLabel(t *testing.T) {
	assert.Equal(t, "A", rowLabel(0))
	assert.Equal(t, "Z", rowLabel(25))
	assert.Equal(t, "AA", rowLabel(26))
	assert.Equal(t, "AZ", rowLabel(51))
	assert.Equal(t, "BA", rowLabel(52))
}

func TestExpandGridShape(t *testing.T) {
	eventID := uuid.New()
	req := &GenerateSeatsRequest{
		Sections: []SectionSpec{
			{Name: "Floor", Rows: 2, SeatsPerRow: 3, Price: decimal.NewFromInt(50)},
			{Name: "Balcony", Rows: 1, SeatsPerRow: 2, Price: decimal.NewFromInt(30)},
		},
	}

	seats := expandGrid(eventID, req)
	require.Len(t, seats, 8)
	assert.Equal(t, req.TotalSeats(), len(seats))

	first := seats[0]
	assert.Equal(t, eventID, first.EventID)
	assert.Equal(t, "Floor", first.Section)
	assert.Equal(t, "A", first.Row)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, StatusAvailable, first.Status)

	last := seats[7]
	assert.Equal(t, "Balcony", last.Section)
	assert.Equal(t, "A", last.Row)
	assert.Equal(t, 2, last.Number)
	assert.True(t, last.Price.Equal(decimal.NewFromInt(30)))
}

func TestBuildSeatMapGroupsSectionsAndRows(t *testing.T) {
	eventID := uuid.New()
	seats := expandGrid(eventID, &GenerateSeatsRequest{
		Sections: []SectionSpec{
			{Name: "Floor", Rows: 2, SeatsPerRow: 2, Price: decimal.NewFromInt(50)},
		},
	})
	seats[1].Status = StatusHeld
	seats[3].Status = StatusBooked

	seatMap := buildSeatMap(eventID, seats)

	require.Len(t, seatMap.Sections, 1)
	require.Len(t, seatMap.Sections[0].Rows, 2)
	assert.Equal(t, "A", seatMap.Sections[0].Rows[0].Row)
	assert.Len(t, seatMap.Sections[0].Rows[0].Seats, 2)

	assert.Equal(t, 2, seatMap.Counts[StatusAvailable])
	assert.Equal(t, 1, seatMap.Counts[StatusHeld])
	assert.Equal(t, 1, seatMap.Counts[StatusBooked])
}

func TestSummarizeTotals(t *testing.T) {
	summary := summarize(uuid.New(), map[Status]int{
		StatusAvailable: 10,
		StatusHeld:      2,
		StatusBooked:    5,
		StatusBlocked:   1,
	})

	assert.Equal(t, 18, summary.Total)
	assert.Equal(t, 10, summary.Available)
	assert.Equal(t, 2, summary.Held)
	assert.Equal(t, 5, summary.Booked)
	assert.Equal(t, 1, summary.Blocked)
}

func TestSortSeatIDsDeduplicatesAndOrders(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	sorted := sortSeatIDs([]uuid.UUID{c, a, b, a, c})
	assert.Equal(t, []uuid.UUID{a, b, c}, sorted)
}

func TestParseSeatIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseSeatIDList([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = parseSeatIDList([]string{"not-a-uuid"})
	assert.Error(t, err)

	_, err = parseSeatIDList([]string{a.String(), a.String()})
	assert.Error(t, err)
}

func TestEffectiveHoldDuration(t *testing.T) {
	ttl := 15 * time.Minute

	// Absent duration falls back to the sweep TTL.
	assert.Equal(t, ttl, effectiveHoldDuration(0, ttl))
	assert.Equal(t, 5*time.Minute, effectiveHoldDuration(5, ttl))
	// The sweeper frees holds at the TTL, so a longer request is capped.
	assert.Equal(t, ttl, effectiveHoldDuration(60, ttl))
}

func TestSeatNotAvailableRetryability(t *testing.T) {
	held := &Seat{ID: uuid.New(), Section: "Floor", Row: "A", Number: 1, Status: StatusHeld}
	err := seatNotAvailable(held)
	assert.True(t, apperrors.IsRetryable(err), "a held seat may free up when the hold lapses")

	booked := &Seat{ID: uuid.New(), Section: "Floor", Row: "A", Number: 2, Status: StatusBooked}
	err = seatNotAvailable(booked)
	assert.False(t, apperrors.IsRetryable(err), "a booked seat is a definitive refusal")
	assert.Equal(t, apperrors.CodeSeatNotAvailable, apperrors.CodeOf(err))
}

func TestSeatTransitionPredicates(t *testing.T) {
	seat := &Seat{Status: StatusAvailable}
	assert.True(t, seat.IsHoldable())
	assert.True(t, seat.IsBookable())

	seat.Status = StatusHeld
	assert.False(t, seat.IsHoldable())
	assert.True(t, seat.IsBookable())

	seat.Status = StatusBlocked
	assert.False(t, seat.IsHoldable())
	assert.False(t, seat.IsBookable())
}
