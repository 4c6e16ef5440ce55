package lock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"ticketly/internal/shared/apperrors"
)

func TestKeyBuilders(t *testing.T) {
	eventID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	seatID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	assert.Equal(t,
		"booking:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222",
		BookingKey(eventID, userID))
	assert.Equal(t,
		"bulk_booking:11111111-1111-1111-1111-111111111111",
		BulkBookingKey(eventID))
	assert.Equal(t,
		"seat:33333333-3333-3333-3333-333333333333",
		SeatKey(seatID))
}

func TestReleaseScriptChecksOwnership(t *testing.T) {
	// The release script must compare before delete; a blind DEL would let a
	// stale holder remove a successor's lock.
	assert.Contains(t, luaCompareAndDelete, `redis.call("GET", KEYS[1]) == ARGV[1]`)
	assert.Contains(t, luaCompareAndDelete, `redis.call("DEL", KEYS[1])`)
	assert.Len(t, luaCompareAndDeleteSHA, 40)
}

func TestAcquireWithoutRedisIsExternalError(t *testing.T) {
	s := NewService(nil, 0)

	_, err := s.Acquire(context.Background(), "booking:x:y", time.Second)
	assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err))

	_, err = s.Release(context.Background(), "booking:x:y", "token")
	assert.Equal(t, apperrors.KindExternal, apperrors.KindOf(err))
}

func TestPollIntervalDefault(t *testing.T) {
	s := NewService(nil, 0)
	assert.Equal(t, 100*time.Millisecond, s.pollInterval)

	s = NewService(nil, time.Second)
	assert.Equal(t, time.Second, s.pollInterval)
}
