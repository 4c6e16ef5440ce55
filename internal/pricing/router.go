package pricing

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/middleware"
)

func SetupPricingRoutes(router *gin.RouterGroup, controller Controller) {
	// Pricing is an admin-only surface; buyers see prices through events.
	adminPricing := router.Group("/admin/pricing")
	adminPricing.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminPricing.GET("/:eventId/preview", controller.PreviewEvaluation) // GET /api/v1/admin/pricing/:eventId/preview
		adminPricing.GET("/:eventId/changes", controller.ListChanges)      // GET /api/v1/admin/pricing/:eventId/changes
		adminPricing.POST("/tick", controller.TriggerTick)                 // POST /api/v1/admin/pricing/tick
	}
}
