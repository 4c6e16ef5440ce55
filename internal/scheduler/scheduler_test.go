package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ticketly/internal/shared/config"
)

type fakeExpirer struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (f *fakeExpirer) ExpireDueBookings(_ context.Context, _ time.Time, limit int) (int, error) {
	f.calls.Add(1)
	f.limit.Store(int32(limit))
	return 1, nil
}

type fakeWaitlistExpirer struct {
	calls  atomic.Int32
	cutoff atomic.Value
}

func (f *fakeWaitlistExpirer) ExpireNotifications(_ context.Context, cutoff time.Time, _ int) (int, error) {
	f.calls.Add(1)
	f.cutoff.Store(cutoff)
	return 0, nil
}

type fakeSweeper struct {
	calls atomic.Int32
}

func (f *fakeSweeper) SweepExpiredHolds(_ context.Context, _ time.Time) (int, error) {
	f.calls.Add(1)
	return 2, nil
}

type fakeTicker struct {
	calls atomic.Int32
}

func (f *fakeTicker) Tick(_ context.Context) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func testConfig(interval time.Duration) *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			ExpireBookingsInterval: interval,
			ExpireBookingsBatch:    100,
			ExpireWaitlistInterval: interval,
			SweepSeatHoldsInterval: interval,
			PriceTickInterval:      interval,
		},
		Waitlist: config.WaitlistConfig{
			NotificationTimeout: 24 * time.Hour,
		},
	}
}

func TestJobProcessorRunsAllTasks(t *testing.T) {
	bookings := &fakeExpirer{}
	waitlist := &fakeWaitlistExpirer{}
	seats := &fakeSweeper{}
	pricing := &fakeTicker{}

	jp := NewJobProcessor(bookings, waitlist, seats, pricing, testConfig(5*time.Millisecond))
	jp.Start(context.Background())
	defer jp.Stop()

	assert.Eventually(t, func() bool {
		return bookings.calls.Load() > 0 &&
			waitlist.calls.Load() > 0 &&
			seats.calls.Load() > 0 &&
			pricing.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(100), bookings.limit.Load())
}

func TestJobProcessorStopHaltsTicks(t *testing.T) {
	bookings := &fakeExpirer{}
	jp := NewJobProcessor(bookings, nil, nil, nil, testConfig(5*time.Millisecond))
	jp.Start(context.Background())

	assert.Eventually(t, func() bool {
		return bookings.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	jp.Stop()
	after := bookings.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, bookings.calls.Load(), after+1)
}

func TestJobProcessorCancelledContextHaltsTicks(t *testing.T) {
	seats := &fakeSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	jp := NewJobProcessor(nil, nil, seats, nil, testConfig(5*time.Millisecond))
	jp.Start(ctx)
	defer jp.Stop()

	assert.Eventually(t, func() bool {
		return seats.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	after := seats.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, seats.calls.Load(), after+1)
}

func TestWaitlistCutoffUsesNotificationTimeout(t *testing.T) {
	waitlist := &fakeWaitlistExpirer{}
	cfg := testConfig(time.Hour)

	jp := NewJobProcessor(nil, waitlist, nil, nil, cfg)
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jp.now = func() time.Time { return frozen }

	jp.expireWaitlistNotifications(context.Background())

	assert.Equal(t, int32(1), waitlist.calls.Load())
	assert.Equal(t, frozen.Add(-24*time.Hour), waitlist.cutoff.Load().(time.Time))
}
