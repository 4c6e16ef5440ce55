package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsBookable(t *testing.T) {
	now := time.Now()

	event := &Event{IsActive: true, EventDate: now.Add(48 * time.Hour)}
	assert.True(t, event.IsBookable(now))

	event.IsActive = false
	assert.False(t, event.IsBookable(now), "inactive events are not bookable")

	event.IsActive = true
	event.EventDate = now.Add(-time.Hour)
	assert.False(t, event.IsBookable(now), "past events are not bookable")
}

func TestIsSoldOutFor(t *testing.T) {
	event := &Event{TotalCapacity: 100, AvailableCapacity: 3}

	assert.False(t, event.IsSoldOutFor(3))
	assert.True(t, event.IsSoldOutFor(4))

	event.AvailableCapacity = 0
	assert.True(t, event.IsSoldOutFor(1))
}

func TestCapacityUtilization(t *testing.T) {
	event := &Event{TotalCapacity: 100, AvailableCapacity: 25}
	assert.InDelta(t, 0.75, event.CapacityUtilization(), 0.0001)

	event = &Event{TotalCapacity: 0, AvailableCapacity: 0}
	assert.Zero(t, event.CapacityUtilization())
}

func TestToResponseMarksSoldOut(t *testing.T) {
	event := &Event{TotalCapacity: 10, AvailableCapacity: 0}
	assert.True(t, event.ToResponse().IsSoldOut)

	event.AvailableCapacity = 1
	assert.False(t, event.ToResponse().IsSoldOut)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 2, totalPages(11, 10))
	assert.Equal(t, 0, totalPages(5, 0))
}
