package scheduler

import (
	"context"
	"time"

	"ticketly/internal/shared/config"
	"ticketly/pkg/logger"
)

// The scheduler owns the periodic sweeps: expiring lapsed PENDING bookings,
// returning stale waitlist notifications to the queue, freeing expired seat
// holds, and the dynamic pricing tick. Each task runs on its own ticker and
// each invocation is an independent unit of work.

// BookingExpirer expires every due PENDING booking up to limit.
type BookingExpirer interface {
	ExpireDueBookings(ctx context.Context, now time.Time, limit int) (int, error)
}

// WaitlistExpirer re-queues NOTIFIED waitlist entries whose window opened
// before the cutoff.
type WaitlistExpirer interface {
	ExpireNotifications(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// SeatSweeper releases seat holds that outlived the hold TTL.
type SeatSweeper interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (int, error)
}

// PriceTicker recomputes dynamic prices for active future events.
type PriceTicker interface {
	Tick(ctx context.Context) (int, error)
}

// JobProcessor runs the periodic tasks until stopped.
type JobProcessor struct {
	bookings BookingExpirer
	waitlist WaitlistExpirer
	seats    SeatSweeper
	pricing  PriceTicker

	cfg config.SchedulerConfig

	// notifyTimeout is the waitlist booking window; the expiry cutoff is
	// now − notifyTimeout.
	notifyTimeout time.Duration

	done chan struct{}
	now  func() time.Time
}

func NewJobProcessor(
	bookings BookingExpirer,
	waitlist WaitlistExpirer,
	seats SeatSweeper,
	pricing PriceTicker,
	cfg *config.Config,
) *JobProcessor {
	return &JobProcessor{
		bookings:      bookings,
		waitlist:      waitlist,
		seats:         seats,
		pricing:       pricing,
		cfg:           cfg.Scheduler,
		notifyTimeout: cfg.Waitlist.NotificationTimeout,
		done:          make(chan struct{}),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start launches every configured task. Tasks without a service or with a
// non-positive cadence stay off.
func (jp *JobProcessor) Start(ctx context.Context) {
	if jp.bookings != nil && jp.cfg.ExpireBookingsInterval > 0 {
		go jp.run(ctx, "expire_bookings", jp.cfg.ExpireBookingsInterval, jp.expireBookings)
	}
	if jp.waitlist != nil && jp.cfg.ExpireWaitlistInterval > 0 {
		go jp.run(ctx, "expire_waitlist_notifications", jp.cfg.ExpireWaitlistInterval, jp.expireWaitlistNotifications)
	}
	if jp.seats != nil && jp.cfg.SweepSeatHoldsInterval > 0 {
		go jp.run(ctx, "sweep_seat_holds", jp.cfg.SweepSeatHoldsInterval, jp.sweepSeatHolds)
	}
	if jp.pricing != nil && jp.cfg.PriceTickInterval > 0 {
		go jp.run(ctx, "price_tick", jp.cfg.PriceTickInterval, jp.priceTick)
	}

	logger.GetDefault().InfoWithContext(ctx, "scheduler started", map[string]interface{}{
		"expire_bookings_interval": jp.cfg.ExpireBookingsInterval.String(),
		"expire_waitlist_interval": jp.cfg.ExpireWaitlistInterval.String(),
		"sweep_seat_holds_interval": jp.cfg.SweepSeatHoldsInterval.String(),
		"price_tick_interval":      jp.cfg.PriceTickInterval.String(),
	})
}

// Stop halts all tasks. In-flight invocations finish; no new ticks fire.
func (jp *JobProcessor) Stop() {
	close(jp.done)
}

func (jp *JobProcessor) run(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			task(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) expireBookings(ctx context.Context) {
	expired, err := jp.bookings.ExpireDueBookings(ctx, jp.now(), jp.cfg.ExpireBookingsBatch)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "booking expiry sweep failed", err, nil)
		return
	}
	if expired > 0 {
		logger.GetDefault().InfoWithContext(ctx, "expired lapsed bookings", map[string]interface{}{
			"count": expired,
		})
	}
}

func (jp *JobProcessor) expireWaitlistNotifications(ctx context.Context) {
	cutoff := jp.now().Add(-jp.notifyTimeout)
	requeued, err := jp.waitlist.ExpireNotifications(ctx, cutoff, jp.cfg.ExpireBookingsBatch)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "waitlist notification expiry sweep failed", err, nil)
		return
	}
	if requeued > 0 {
		logger.GetDefault().InfoWithContext(ctx, "requeued stale waitlist notifications", map[string]interface{}{
			"count": requeued,
		})
	}
}

func (jp *JobProcessor) sweepSeatHolds(ctx context.Context) {
	released, err := jp.seats.SweepExpiredHolds(ctx, jp.now())
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "seat hold sweep failed", err, nil)
		return
	}
	if released > 0 {
		logger.GetDefault().InfoWithContext(ctx, "released expired seat holds", map[string]interface{}{
			"count": released,
		})
	}
}

func (jp *JobProcessor) priceTick(ctx context.Context) {
	repriced, err := jp.pricing.Tick(ctx)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "pricing tick failed", err, nil)
		return
	}
	if repriced > 0 {
		logger.GetDefault().InfoWithContext(ctx, "dynamic pricing tick repriced events", map[string]interface{}{
			"count": repriced,
		})
	}
}
