package events

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/middleware"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller) {
	// Public routes - anyone can browse the catalog
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", controller.ListEvents)                 // GET /api/v1/events
		publicEvents.GET("/:eventId", controller.GetEvent)          // GET /api/v1/events/:eventId
		publicEvents.GET("/upcoming", controller.GetUpcomingEvents) // GET /api/v1/events/upcoming
		publicEvents.GET("/popular", controller.GetPopularEvents)   // GET /api/v1/events/popular
	}

	// Admin routes - event lifecycle management
	adminEvents := router.Group("/admin/events")
	adminEvents.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminEvents.POST("", controller.CreateEvent)                        // POST /api/v1/admin/events
		adminEvents.PUT("/:eventId", controller.UpdateEvent)                // PUT /api/v1/admin/events/:eventId
		adminEvents.POST("/:eventId/deactivate", controller.DeactivateEvent) // POST /api/v1/admin/events/:eventId/deactivate
		adminEvents.DELETE("/:eventId", controller.DeleteEvent)             // DELETE /api/v1/admin/events/:eventId

		// Admins browse through the same read paths
		adminEvents.GET("", controller.ListEvents)
		adminEvents.GET("/:eventId", controller.GetEvent)
	}
}
