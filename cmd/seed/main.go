package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ticketly/internal/events"
	"ticketly/internal/seats"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"
	"ticketly/internal/shared/migrations"
	"ticketly/internal/users"
	"ticketly/internal/waitlist"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Ticketly Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db.GetPostgreSQL()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"pricing_changes",
		"waitlist",
		"booking_history",
		"seat_bookings",
		"bookings",
		"seats",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	if err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore constraints: %w", err)
	}

	return tx.Commit().Error
}

// SeedAll seeds demo users, a general admission event, a seated event with a
// full seat map, and a sold-out event with a populated waitlist.
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	userIDs, err := s.SeedUsers()
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedGeneralAdmissionEvent(userIDs["admin"]); err != nil {
		return fmt.Errorf("failed to seed general admission event: %w", err)
	}

	if err := s.SeedSeatedEvent(userIDs["admin"]); err != nil {
		return fmt.Errorf("failed to seed seated event: %w", err)
	}

	if err := s.SeedSoldOutEventWithWaitlist(userIDs); err != nil {
		return fmt.Errorf("failed to seed sold-out event: %w", err)
	}

	// Clear Redis so stale cache entries never mask fresh data.
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

// SeedUsers creates 1 admin and 2 regular users, all with password "qwerty".
func (s *Seeder) SeedUsers() (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key       string
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"admin", "Admin", "User", "admin@ticketly.dev", users.RoleAdmin},
		{"user1", "Asha", "Patel", "asha@ticketly.dev", users.RoleUser},
		{"user2", "Rahul", "Mehta", "rahul@ticketly.dev", users.RoleUser},
	}

	for _, userData := range usersData {
		user := users.User{
			ID:        uuid.New(),
			FirstName: userData.firstName,
			LastName:  userData.lastName,
			Email:     userData.email,
			Password:  string(hashedPassword),
			Role:      userData.role,
			IsActive:  true,
		}

		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}

	return userIDs, nil
}

// SeedGeneralAdmissionEvent creates a capacity-only event.
func (s *Seeder) SeedGeneralAdmissionEvent(adminID uuid.UUID) error {
	fmt.Println("  🎪 Seeding general admission event...")

	event := events.Event{
		ID:                uuid.New(),
		Name:              "Tech Conference 2026",
		Description:       "Annual technology conference featuring the latest innovations and industry leaders.",
		Venue:             "Tech Hub Convention Center",
		EventDate:         time.Now().UTC().AddDate(0, 0, 30),
		TotalCapacity:     500,
		AvailableCapacity: 500,
		BasePrice:         decimal.NewFromInt(1500),
		Price:             decimal.NewFromInt(1500),
		HasSeatSelection:  false,
		IsActive:          true,
		CreatedBy:         adminID,
	}

	if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", event.Name, err)
	}

	fmt.Printf("    ✅ Created event: %s (capacity %d)\n", event.Name, event.TotalCapacity)
	return nil
}

// SeedSeatedEvent creates an event with a two-section seat map: a premium
// row A and standard rows B and C.
func (s *Seeder) SeedSeatedEvent(adminID uuid.UUID) error {
	fmt.Println("  💺 Seeding seated event...")

	const totalSeats = 13 + 2*13

	event := events.Event{
		ID:                uuid.New(),
		Name:              "Classical Music Evening",
		Description:       "An elegant evening of classical music performed by renowned musicians.",
		Venue:             "Grand Opera House",
		EventDate:         time.Now().UTC().AddDate(0, 0, 45),
		TotalCapacity:     totalSeats,
		AvailableCapacity: totalSeats,
		BasePrice:         decimal.NewFromInt(800),
		Price:             decimal.NewFromInt(800),
		HasSeatSelection:  true,
		IsActive:          true,
		CreatedBy:         adminID,
	}

	if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", event.Name, err)
	}
	fmt.Printf("    ✅ Created event: %s (%d seats)\n", event.Name, totalSeats)

	if err := s.createSeatRow(event.ID, "Premium", "A", 13, decimal.NewFromInt(1440)); err != nil {
		return err
	}
	for _, row := range []string{"B", "C"} {
		if err := s.createSeatRow(event.ID, "Standard", row, 13, decimal.NewFromInt(800)); err != nil {
			return err
		}
	}

	return nil
}

func (s *Seeder) createSeatRow(eventID uuid.UUID, section, row string, count int, price decimal.Decimal) error {
	for number := 1; number <= count; number++ {
		seat := seats.Seat{
			ID:      uuid.New(),
			EventID: eventID,
			Section: section,
			Row:     row,
			Number:  number,
			Price:   price,
			Status:  seats.StatusAvailable,
		}
		if err := s.db.PostgreSQL.Create(&seat).Error; err != nil {
			return fmt.Errorf("failed to create seat %s%d: %w", row, number, err)
		}
	}
	fmt.Printf("      ✅ Created section %s row %s (%d seats)\n", section, row, count)
	return nil
}

// SeedSoldOutEventWithWaitlist creates an exhausted event plus a small queue
// so the waitlist flow is exercisable out of the box.
func (s *Seeder) SeedSoldOutEventWithWaitlist(userIDs map[string]uuid.UUID) error {
	fmt.Println("  ⏳ Seeding sold-out event with waitlist...")

	event := events.Event{
		ID:                uuid.New(),
		Name:              "Startup Pitch Night",
		Description:       "Watch promising startups pitch their ideas to investors and industry experts.",
		Venue:             "Innovation Center",
		EventDate:         time.Now().UTC().AddDate(0, 0, 15),
		TotalCapacity:     50,
		AvailableCapacity: 0,
		BasePrice:         decimal.NewFromInt(500),
		Price:             decimal.NewFromInt(500),
		HasSeatSelection:  false,
		IsActive:          true,
		CreatedBy:         userIDs["admin"],
	}

	if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", event.Name, err)
	}
	fmt.Printf("    ✅ Created event: %s (sold out)\n", event.Name)

	entries := []struct {
		userKey  string
		quantity int
	}{
		{"user1", 2},
		{"user2", 1},
	}

	for position, entryData := range entries {
		entry := waitlist.Entry{
			ID:       uuid.New(),
			UserID:   userIDs[entryData.userKey],
			EventID:  event.ID,
			Quantity: entryData.quantity,
			Position: position + 1,
			Status:   waitlist.StatusActive,
			JoinedAt: time.Now().UTC(),
		}
		if err := s.db.PostgreSQL.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create waitlist entry: %w", err)
		}
		fmt.Printf("      ✅ Waitlisted %s at position %d (qty %d)\n", entryData.userKey, entry.Position, entry.Quantity)
	}

	return nil
}
