package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitlistAvailabilityCarriesDeadlineAndQuantity(t *testing.T) {
	entryID := uuid.New()
	eventID := uuid.New()
	deadline := time.Now().Add(24 * time.Hour).UTC()

	intent := WaitlistAvailability(entryID, eventID, 3, deadline)

	require.NotNil(t, intent.WaitlistEntryID)
	assert.Equal(t, entryID, *intent.WaitlistEntryID)
	require.NotNil(t, intent.Deadline)
	assert.Equal(t, deadline, *intent.Deadline)
	assert.Equal(t, 3, intent.Payload["available_quantity"])
	assert.Equal(t, PriorityCritical, intent.Priority)
}

func TestPartitionKeyPrefersBookingID(t *testing.T) {
	bookingID := uuid.New()
	eventID := uuid.New()

	intent := BookingConfirmation(bookingID, eventID, nil)
	assert.Equal(t, bookingID.String(), intent.PartitionKey())

	intent = EventUpdate(eventID, "date moved")
	assert.Equal(t, eventID.String(), intent.PartitionKey())
}

func TestIntentRoundTripsThroughTransport(t *testing.T) {
	bookingID := uuid.New()
	eventID := uuid.New()

	intent := BookingCancellation(bookingID, eventID, map[string]interface{}{"reason": "user request"})

	data, err := intent.ToJSON()
	require.NoError(t, err)

	decoded, err := IntentFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, decoded.ID)
	assert.Equal(t, IntentBookingCancellation, decoded.Type)
	assert.Equal(t, "user request", decoded.Payload["reason"])
}
