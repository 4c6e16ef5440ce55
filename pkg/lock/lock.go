package lock

import (
	"context"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticketly/internal/shared/apperrors"
)

// Service provides named, time-bounded mutual exclusion across processes.
// Tokens act as fencing identifiers: a release only succeeds when the caller
// still owns the key. Locks reduce wasted work under contention; the store's
// version CAS remains the correctness guard.
type Service struct {
	redis        *redis.Client
	pollInterval time.Duration
}

// NewService creates a lock service on the given Redis client.
func NewService(redisClient *redis.Client, pollInterval time.Duration) *Service {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Service{
		redis:        redisClient,
		pollInterval: pollInterval,
	}
}

// keyPrefix namespaces lock keys away from cached values.
const keyPrefix = "lock:"

// Lua script for atomic compare-and-delete on release. Deleting without the
// ownership check would let a holder whose TTL already lapsed remove a lock
// that a second holder has since acquired.
const luaCompareAndDelete = `
-- KEYS[1] = lock key
-- ARGV[1] = owner token

if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

var luaCompareAndDeleteSHA = fmt.Sprintf("%x", sha1.Sum([]byte(luaCompareAndDelete)))

// BookingKey names the per-user create lock for an event.
func BookingKey(eventID, userID uuid.UUID) string {
	return fmt.Sprintf("booking:%s:%s", eventID, userID)
}

// BulkBookingKey names the bulk seat-assignment lock for an event.
func BulkBookingKey(eventID uuid.UUID) string {
	return fmt.Sprintf("bulk_booking:%s", eventID)
}

// SeatKey names the per-seat lock. Reserved; the seat state machine does not
// need it.
func SeatKey(seatID uuid.UUID) string {
	return fmt.Sprintf("seat:%s", seatID)
}

// Acquire attempts a single set-if-absent with expiry. It returns the owner
// token on success and a LockTimeout error when the key is already held.
func (s *Service) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.redis == nil {
		return "", apperrors.External("lock store not available", nil)
	}

	token := uuid.New().String()
	ok, err := s.redis.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", apperrors.External("lock acquire failed", err)
	}
	if !ok {
		return "", apperrors.Concurrency(apperrors.CodeLockTimeout, "lock is held by another operation").
			WithDetail("key", key)
	}
	return token, nil
}

// AcquireWait polls for the lock until the wait budget is spent. A zero wait
// degenerates to a single attempt. Cancellation is observed between polls.
func (s *Service) AcquireWait(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		token, err := s.Acquire(ctx, key, ttl)
		if err == nil {
			return token, nil
		}
		if apperrors.KindOf(err) != apperrors.KindConcurrency {
			return "", err
		}
		if !time.Now().Add(s.pollInterval).Before(deadline) {
			return "", apperrors.Concurrency(apperrors.CodeLockTimeout, "timed out waiting for lock").
				WithDetail("key", key)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// Release removes the lock iff the stored owner matches token. Releases from
// non-owners (including holders whose TTL lapsed and was re-acquired) are
// no-ops and report false.
func (s *Service) Release(ctx context.Context, key, token string) (bool, error) {
	if s.redis == nil {
		return false, apperrors.External("lock store not available", nil)
	}

	result, err := s.redis.EvalSha(ctx, luaCompareAndDeleteSHA, []string{keyPrefix + key}, token).Result()
	if err != nil {
		// If script is not loaded, try to load and execute
		result, err = s.redis.Eval(ctx, luaCompareAndDelete, []string{keyPrefix + key}, token).Result()
		if err != nil {
			return false, apperrors.External("lock release failed", err)
		}
	}

	deleted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result format from release script")
	}
	return deleted == 1, nil
}

// PreloadScripts loads the release script into Redis for better performance
func (s *Service) PreloadScripts(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	if _, err := s.redis.ScriptLoad(ctx, luaCompareAndDelete).Result(); err != nil {
		return fmt.Errorf("failed to load lock release script: %w", err)
	}
	return nil
}
