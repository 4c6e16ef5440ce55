package waitlist

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/middleware"
)

func SetupWaitlistRoutes(router *gin.RouterGroup, controller Controller) {
	// User routes - joining and tracking a queue requires authentication
	waitlist := router.Group("/waitlist")
	waitlist.Use(middleware.JWTAuth())
	{
		waitlist.POST("", controller.Join)                    // POST /api/v1/waitlist
		waitlist.GET("", controller.ListMyEntries)            // GET /api/v1/waitlist
		waitlist.GET("/:eventId", controller.GetMyEntry)      // GET /api/v1/waitlist/:eventId
		waitlist.DELETE("/:eventId", controller.Leave)        // DELETE /api/v1/waitlist/:eventId
		waitlist.GET("/:eventId/stats", controller.GetStats)  // GET /api/v1/waitlist/:eventId/stats
	}

	// Admin routes - full queue visibility
	adminWaitlist := router.Group("/admin/waitlist")
	adminWaitlist.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminWaitlist.GET("/:eventId", controller.ListEventEntries) // GET /api/v1/admin/waitlist/:eventId
	}
}
