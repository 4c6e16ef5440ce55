package migrations

import (
	"gorm.io/gorm"

	"ticketly/internal/bookings"
	"ticketly/internal/events"
	"ticketly/internal/pricing"
	"ticketly/internal/seats"
	"ticketly/internal/users"
	"ticketly/internal/waitlist"
)

// Registry lists every persisted model, in dependency order.
func Registry() []interface{} {
	return []interface{}{
		&users.User{},
		&events.Event{},
		&seats.Seat{},
		&bookings.Booking{},
		&bookings.SeatBooking{},
		&bookings.BookingHistory{},
		&waitlist.Entry{},
		&pricing.PriceChange{},
	}
}

// Run auto-migrates the full model registry and then applies the constraints
// AutoMigrate cannot express.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Registry()...); err != nil {
		return err
	}

	return applyConstraints(db)
}

// constraintStatements holds the concurrency-critical indexes. All statements
// are idempotent so startup can run them on every boot.
var constraintStatements = []string{
	// One live waitlist entry per user per event; terminal rows do not
	// block a rejoin.
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_waitlist_user_event_live
		ON waitlist (user_id, event_id)
		WHERE status IN ('ACTIVE', 'NOTIFIED')`,

	// Expiry sweep scans PENDING bookings ordered by deadline.
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_expires_at
		ON bookings (status, expires_at)`,

	// Seat availability and hold-sweep lookups.
	`CREATE INDEX IF NOT EXISTS idx_seats_event_status
		ON seats (event_id, status)`,

	// Queue walks read live entries in position order.
	`CREATE INDEX IF NOT EXISTS idx_waitlist_event_status_position
		ON waitlist (event_id, status, position)`,

	// Pricing velocity windows count bookings per event by creation time.
	`CREATE INDEX IF NOT EXISTS idx_bookings_event_created_at
		ON bookings (event_id, created_at)`,
}

func applyConstraints(db *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
