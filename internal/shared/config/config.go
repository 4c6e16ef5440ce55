package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Booking engine configuration
	Booking BookingConfig

	// Waitlist configuration
	Waitlist WaitlistConfig

	// Background scheduler cadences
	Scheduler SchedulerConfig

	// Optimistic-concurrency retry policy
	Retry RetryConfig

	// Distributed lock configuration
	Lock LockConfig

	// Kafka configuration
	Kafka KafkaConfig

	// Dynamic pricing configuration
	Pricing PricingConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for cached reads
	EventDetailTTL  time.Duration
	EventListTTL    time.Duration
	SeatMapTTL      time.Duration
	PopularTTL      time.Duration
	UpcomingTTL     time.Duration
	AvailabilityTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
}

// BookingConfig holds the knobs of the booking engine.
type BookingConfig struct {
	// HoldTimeout is how long a PENDING booking keeps its inventory.
	HoldTimeout time.Duration
	// MaxQuantity caps tickets per booking.
	MaxQuantity int
	// SeatHoldTTL is how long a seat stays HELD before the sweeper frees it.
	SeatHoldTTL time.Duration
	// BulkMinQuantity/BulkMaxQuantity bound group bookings.
	BulkMinQuantity int
	BulkMaxQuantity int
}

// WaitlistConfig holds waitlist configuration.
type WaitlistConfig struct {
	// NotificationTimeout is the booking window granted to a NOTIFIED entry.
	NotificationTimeout time.Duration
	MaxQuantityPerUser  int
}

// SchedulerConfig holds background sweep cadences.
type SchedulerConfig struct {
	ExpireBookingsInterval time.Duration
	ExpireBookingsBatch    int
	ExpireWaitlistInterval time.Duration
	SweepSeatHoldsInterval time.Duration
	PriceTickInterval      time.Duration
}

// RetryConfig holds the optimistic retry policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// LockConfig holds distributed lock configuration.
type LockConfig struct {
	DefaultTTL   time.Duration
	AcquireWait  time.Duration
	PollInterval time.Duration
}

// KafkaConfig holds notification transport configuration.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	IntentTopic   string
	DLQTopic      string
	ConsumerGroup string
}

// PricingConfig holds dynamic pricing thresholds.
type PricingConfig struct {
	HighDemandThreshold float64
	LowDemandThreshold  float64
	MaxIncrease         float64
	MaxDecrease         float64
	// MinChangePercent gates persistence of recomputed prices.
	MinChangePercent float64
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	PublicRequests  int           `json:"public_requests"`
	AuthRequests    int           `json:"auth_requests"`
	BookingRequests int           `json:"booking_requests"`
	AdminRequests   int           `json:"admin_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "ticketly_db"),
			User:     getEnv("DB_USER", "ticketly_user"),
			Password: getEnv("DB_PASSWORD", "ticketly_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			EventDetailTTL:  getDurationEnvSeconds("CACHE_EVENT_DETAIL_TTL", 10*time.Minute),
			EventListTTL:    getDurationEnvSeconds("CACHE_EVENT_LIST_TTL", 5*time.Minute),
			SeatMapTTL:      getDurationEnvSeconds("CACHE_SEAT_MAP_TTL", 3*time.Minute),
			PopularTTL:      getDurationEnvSeconds("CACHE_POPULAR_TTL", 15*time.Minute),
			UpcomingTTL:     getDurationEnvSeconds("CACHE_UPCOMING_TTL", 10*time.Minute),
			AvailabilityTTL: getDurationEnvSeconds("CACHE_AVAILABILITY_TTL", time.Minute),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		// Booking engine
		Booking: BookingConfig{
			HoldTimeout:     getDurationEnvMinutes("BOOKING_HOLD_TIMEOUT_MINUTES", 15*time.Minute),
			MaxQuantity:     getIntEnv("MAX_BOOKING_QUANTITY", 10),
			SeatHoldTTL:     getDurationEnvMinutes("SEAT_HOLD_TTL_MINUTES", 15*time.Minute),
			BulkMinQuantity: getIntEnv("BULK_BOOKING_MIN_QUANTITY", 2),
			BulkMaxQuantity: getIntEnv("BULK_BOOKING_MAX_QUANTITY", 100),
		},

		// Waitlist
		Waitlist: WaitlistConfig{
			NotificationTimeout: getDurationEnvHours("WAITLIST_NOTIFICATION_TIMEOUT_HOURS", 24*time.Hour),
			MaxQuantityPerUser:  getIntEnv("WAITLIST_MAX_QUANTITY", 10),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			ExpireBookingsInterval: getDurationEnvSeconds("SCHEDULER_EXPIRE_BOOKINGS_SECONDS", 60*time.Second),
			ExpireBookingsBatch:    getIntEnv("SCHEDULER_EXPIRE_BOOKINGS_BATCH", 100),
			ExpireWaitlistInterval: getDurationEnvSeconds("SCHEDULER_EXPIRE_WAITLIST_SECONDS", 3600*time.Second),
			SweepSeatHoldsInterval: getDurationEnvSeconds("SCHEDULER_SWEEP_SEAT_HOLDS_SECONDS", 60*time.Second),
			PriceTickInterval:      getDurationEnvSeconds("SCHEDULER_PRICE_TICK_SECONDS", 600*time.Second),
		},

		// Retry policy
		Retry: RetryConfig{
			MaxAttempts: getIntEnv("MAX_RETRY_ATTEMPTS", 3),
			BaseDelay:   getDurationEnv("RETRY_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:    getDurationEnv("RETRY_MAX_DELAY", time.Second),
		},

		// Distributed lock
		Lock: LockConfig{
			DefaultTTL:   getDurationEnvSeconds("LOCK_DEFAULT_TTL_SECONDS", 30*time.Second),
			AcquireWait:  getDurationEnvSeconds("LOCK_ACQUIRE_WAIT_SECONDS", 5*time.Second),
			PollInterval: getDurationEnv("LOCK_POLL_INTERVAL", 100*time.Millisecond),
		},

		// Kafka
		Kafka: KafkaConfig{
			Enabled:       getBoolEnv("KAFKA_ENABLED", true),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			IntentTopic:   getEnv("KAFKA_INTENT_TOPIC", "booking-notifications"),
			DLQTopic:      getEnv("KAFKA_DLQ_TOPIC", "booking-notifications-dlq"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "ticketly-notifications"),
		},

		// Dynamic pricing
		Pricing: PricingConfig{
			HighDemandThreshold: getFloatEnv("PRICING_HIGH_DEMAND_THRESHOLD", 0.8),
			LowDemandThreshold:  getFloatEnv("PRICING_LOW_DEMAND_THRESHOLD", 0.3),
			MaxIncrease:         getFloatEnv("PRICING_MAX_INCREASE", 0.5),
			MaxDecrease:         getFloatEnv("PRICING_MAX_DECREASE", 0.2),
			MinChangePercent:    getFloatEnv("PRICING_MIN_CHANGE_PERCENT", 0.01),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:  getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			AuthRequests:    getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			BookingRequests: getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 20),
			AdminRequests:   getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getDurationEnvMinutes gets an environment variable as minutes (int) and converts to time.Duration
func getDurationEnvMinutes(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return fallback
}

// getDurationEnvHours gets an environment variable as hours (int) and converts to time.Duration
func getDurationEnvHours(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.Atoi(value); err == nil {
			return time.Duration(hours) * time.Hour
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
