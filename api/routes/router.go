package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"ticketly/internal/auth"
	"ticketly/internal/bookings"
	"ticketly/internal/events"
	"ticketly/internal/notifications"
	"ticketly/internal/pricing"
	"ticketly/internal/seats"
	"ticketly/internal/shared/config"
	"ticketly/internal/shared/database"
	"ticketly/internal/waitlist"
	"ticketly/pkg/cache"
	"ticketly/pkg/lock"
)

// Router wires repositories, services, and controllers once and registers
// every route group. The scheduler reuses the same service instances, so the
// wired services are exposed through getters.
type Router struct {
	config    *config.Config
	db        *database.DB
	publisher notifications.Publisher

	bookingService      bookings.Service
	waitlistCoordinator waitlist.Coordinator
	seatController      *seats.SeatController
	pricingService      pricing.Service
	eventService        events.Service
	seatService         seats.Service
	authService         auth.Service
}

// NewRouter builds the full dependency graph.
func NewRouter(cfg *config.Config, db *database.DB, publisher notifications.Publisher) *Router {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	r := &Router{
		config:    cfg,
		db:        db,
		publisher: publisher,
	}
	r.wire()
	return r
}

func (r *Router) wire() {
	pg := r.db.GetPostgreSQL()
	cacheService := cache.NewService(r.db.GetRedisClient())
	lockService := lock.NewService(r.db.GetRedisClient(), r.config.Lock.PollInterval)

	eventRepo := events.NewRepository(pg)
	seatRepo := seats.NewRepository(pg)
	bookingRepo := bookings.NewRepository(pg)
	waitlistRepo := waitlist.NewRepository(pg)
	pricingRepo := pricing.NewRepository(pg)

	capacity := events.NewCapacityController()
	r.seatController = seats.NewSeatController(pg, seatRepo, eventRepo, capacity, r.config.Booking.SeatHoldTTL)

	r.waitlistCoordinator = waitlist.NewCoordinator(waitlistRepo, eventRepo, cacheService, r.config)
	r.bookingService = bookings.NewService(
		bookingRepo,
		eventRepo,
		capacity,
		r.seatController,
		seatRepo,
		r.waitlistCoordinator,
		lockService,
		r.publisher,
		r.config,
	)
	r.pricingService = pricing.NewService(pricingRepo, eventRepo, cacheService, r.config)

	r.eventService = events.NewService(eventRepo, cacheService, r.publisher)
	r.seatService = seats.NewService(pg, seatRepo, eventRepo, capacity, r.seatController, cacheService)
	r.authService = auth.NewService(auth.NewRepository(pg), r.config)
}

// BookingService returns the wired booking engine.
func (r *Router) BookingService() bookings.Service { return r.bookingService }

// WaitlistCoordinator returns the wired waitlist coordinator.
func (r *Router) WaitlistCoordinator() waitlist.Coordinator { return r.waitlistCoordinator }

// SeatController returns the wired seat lifecycle controller.
func (r *Router) SeatController() *seats.SeatController { return r.seatController }

// PricingService returns the wired dynamic pricing service.
func (r *Router) PricingService() pricing.Service { return r.pricingService }

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		auth.SetupAuthRoutes(api, auth.NewController(r.authService))
		events.SetupEventRoutes(api, events.NewController(r.eventService))
		seats.SetupSeatRoutes(api, seats.NewController(r.seatService))
		bookings.SetupBookingRoutes(api, bookings.NewController(r.bookingService))
		waitlist.SetupWaitlistRoutes(api, waitlist.NewController(r.waitlistCoordinator))
		pricing.SetupPricingRoutes(api, pricing.NewController(r.pricingService))
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ticketly-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ticketly-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}
