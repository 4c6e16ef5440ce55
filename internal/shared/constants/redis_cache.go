package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes Redis cache keys and TTL values for the Ticketly application
// Pattern: ticketly:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Read-mostly data
const (
	TTL_EVENT_LIST   = 5 * time.Minute
	TTL_EVENT_DETAIL = 10 * time.Minute
	TTL_POPULAR      = 15 * time.Minute
	TTL_UPCOMING     = 10 * time.Minute
)

// Inventory-sensitive data (short-lived; booking traffic changes it)
const (
	TTL_SEAT_MAP          = 3 * time.Minute
	TTL_SEAT_AVAILABILITY = 1 * time.Minute
	TTL_WAITLIST_STATS    = 1 * time.Minute
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "ticketly"
)

// ================== EVENTS MODULE ==================

// Event Cache Keys
const (
	CACHE_KEY_EVENTS_LIST     = CACHE_PREFIX + ":events:list"     // + :page:X:limit:Y:status:Z
	CACHE_KEY_EVENTS_UPCOMING = CACHE_PREFIX + ":events:upcoming" // + :page:X:limit:Y
	CACHE_KEY_EVENTS_POPULAR  = CACHE_PREFIX + ":events:popular"  // + :limit:X
	CACHE_KEY_EVENT_DETAIL    = CACHE_PREFIX + ":events:detail:uuid:" // + event-id
)

// ================== SEATS MODULE ==================

// Seat Cache Keys
const (
	CACHE_KEY_SEAT_MAP          = CACHE_PREFIX + ":seats:map:event:"          // + event-id
	CACHE_KEY_SEAT_AVAILABILITY = CACHE_PREFIX + ":seats:availability:event:" // + event-id
)

// ================== WAITLIST MODULE ==================

// Waitlist Cache Keys
const (
	CACHE_KEY_WAITLIST_STATS = CACHE_PREFIX + ":waitlist:stats:event:" // + event-id
)

// ================== CACHE INVALIDATION PATTERNS ==================

// Patterns for cache invalidation (used with SCAN-based deletion)
const (
	PATTERN_INVALIDATE_EVENT_LISTS = CACHE_PREFIX + ":events:list*"
	PATTERN_INVALIDATE_EVENTS_ALL  = CACHE_PREFIX + ":events:*"
	PATTERN_INVALIDATE_SEATS_ALL   = CACHE_PREFIX + ":seats:*"
)

// ================== HELPER FUNCTIONS ==================

// BuildEventListKey constructs the paged event list key
// Example: BuildEventListKey(1, 10, "active") -> "ticketly:events:list:page:1:limit:10:status:active"
func BuildEventListKey(page, limit int, status string) string {
	if status != "" {
		return fmt.Sprintf("%s:page:%d:limit:%d:status:%s", CACHE_KEY_EVENTS_LIST, page, limit, status)
	}
	return fmt.Sprintf("%s:page:%d:limit:%d", CACHE_KEY_EVENTS_LIST, page, limit)
}

func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}

func BuildUpcomingKey(page, limit int) string {
	return fmt.Sprintf("%s:page:%d:limit:%d", CACHE_KEY_EVENTS_UPCOMING, page, limit)
}

func BuildPopularKey(limit int) string {
	return fmt.Sprintf("%s:limit:%d", CACHE_KEY_EVENTS_POPULAR, limit)
}

func BuildSeatMapKey(eventID string) string {
	return CACHE_KEY_SEAT_MAP + eventID
}

func BuildSeatAvailabilityKey(eventID string) string {
	return CACHE_KEY_SEAT_AVAILABILITY + eventID
}

func BuildEventInvalidationPattern(eventID string) string {
	return CACHE_PREFIX + ":*:event:" + eventID + "*"
}

func BuildWaitlistStatsKey(eventID string) string {
	return CACHE_KEY_WAITLIST_STATS + eventID
}
