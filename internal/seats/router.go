package seats

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/middleware"
)

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller) {
	// Public seat views - seat pickers need these before login
	events := rg.Group("/events")
	{
		events.GET("/:eventId/seats", controller.GetSeatMap)                  // GET /api/v1/events/:eventId/seats
		events.GET("/:eventId/seats/availability", controller.GetAvailability) // GET /api/v1/events/:eventId/seats/availability
	}

	// Hold lifecycle - checkout flows reserve seats before a booking exists
	heldSeats := rg.Group("/events")
	heldSeats.Use(middleware.JWTAuth())
	{
		heldSeats.POST("/:eventId/seats/hold", controller.HoldSeats)       // POST /api/v1/events/:eventId/seats/hold
		heldSeats.POST("/:eventId/seats/release", controller.ReleaseSeats) // POST /api/v1/events/:eventId/seats/release
	}

	// Admin seat operations
	adminEvents := rg.Group("/admin/events")
	adminEvents.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminEvents.POST("/:eventId/seats", controller.GenerateSeats)      // POST /api/v1/admin/events/:eventId/seats
		adminEvents.PATCH("/:eventId/seats/block", controller.SetBlocked) // PATCH /api/v1/admin/events/:eventId/seats/block
	}
}
