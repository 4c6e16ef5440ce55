package waitlist

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketly/internal/shared/utils/response"
)

type Controller interface {
	Join(c *gin.Context)
	Leave(c *gin.Context)
	GetMyEntry(c *gin.Context)
	ListMyEntries(c *gin.Context)
	GetStats(c *gin.Context)

	// Admin
	ListEventEntries(c *gin.Context)
}

type controller struct {
	coordinator Coordinator
}

func NewController(coordinator Coordinator) Controller {
	return &controller{coordinator: coordinator}
}

func (ctrl *controller) Join(c *gin.Context) {
	var req JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	userID, ok := userFromContext(c)
	if !ok {
		return
	}

	entry, err := ctrl.coordinator.Join(c.Request.Context(), userID, &req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Joined waitlist successfully", entry, nil)
}

func (ctrl *controller) Leave(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := userFromContext(c)
	if !ok {
		return
	}

	result, err := ctrl.coordinator.Leave(c.Request.Context(), userID, eventID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Left waitlist successfully", result, nil)
}

func (ctrl *controller) GetMyEntry(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := userFromContext(c)
	if !ok {
		return
	}

	entry, err := ctrl.coordinator.GetEntry(c.Request.Context(), userID, eventID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist entry retrieved successfully", entry, nil)
}

func (ctrl *controller) ListMyEntries(c *gin.Context) {
	userID, ok := userFromContext(c)
	if !ok {
		return
	}

	entries, err := ctrl.coordinator.ListUserEntries(c.Request.Context(), userID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist entries retrieved successfully", entries, nil)
}

func (ctrl *controller) GetStats(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	stats, err := ctrl.coordinator.GetStats(c.Request.Context(), eventID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist stats retrieved successfully", stats, nil)
}

func (ctrl *controller) ListEventEntries(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	status := Status(c.Query("status"))
	if status != "" && !status.IsValid() {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid status filter", nil, nil)
		return
	}

	entries, err := ctrl.coordinator.ListEventEntries(c.Request.Context(), eventID, status)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist entries retrieved successfully", entries, nil)
}

func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return uuid.Nil, false
	}
	return eventID, true
}

func userFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid user ID format", nil, nil)
		return uuid.Nil, false
	}
	return userID, true
}
