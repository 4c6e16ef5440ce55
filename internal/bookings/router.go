package bookings

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/middleware"
)

func SetupBookingRoutes(router *gin.RouterGroup, controller Controller) {
	// User routes - every booking operation requires authentication
	bookings := router.Group("/bookings")
	bookings.Use(middleware.JWTAuth())
	{
		bookings.POST("", controller.CreateBooking)                       // POST /api/v1/bookings
		bookings.POST("/bulk", controller.CreateBulkBooking)              // POST /api/v1/bookings/bulk
		bookings.GET("", controller.ListMyBookings)                       // GET /api/v1/bookings
		bookings.GET("/:bookingId", controller.GetBooking)                // GET /api/v1/bookings/:bookingId
		bookings.GET("/:bookingId/history", controller.GetBookingHistory) // GET /api/v1/bookings/:bookingId/history
		bookings.POST("/:bookingId/confirm", controller.ConfirmBooking)   // POST /api/v1/bookings/:bookingId/confirm
		bookings.POST("/:bookingId/cancel", controller.CancelBooking)     // POST /api/v1/bookings/:bookingId/cancel
	}

	// Admin routes - oversight and manual expiry
	adminBookings := router.Group("/admin/bookings")
	adminBookings.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminBookings.GET("", controller.ListAllBookings)                  // GET /api/v1/admin/bookings
		adminBookings.GET("/:bookingId", controller.GetBooking)            // GET /api/v1/admin/bookings/:bookingId
		adminBookings.POST("/:bookingId/expire", controller.ExpireBooking) // POST /api/v1/admin/bookings/:bookingId/expire
	}
}
