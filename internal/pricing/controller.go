package pricing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketly/internal/shared/utils/response"
)

type Controller interface {
	PreviewEvaluation(c *gin.Context)
	TriggerTick(c *gin.Context)
	ListChanges(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) PreviewEvaluation(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	eval, err := ctrl.service.EvaluateEvent(c.Request.Context(), eventID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Pricing evaluation computed", eval, nil)
}

func (ctrl *controller) TriggerTick(c *gin.Context) {
	persisted, err := ctrl.service.Tick(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Pricing tick completed",
		gin.H{"repriced_events": persisted}, nil)
}

func (ctrl *controller) ListChanges(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	changes, err := ctrl.service.ListChanges(c.Request.Context(), eventID, limit)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Price changes retrieved successfully", changes, nil)
}

func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return uuid.Nil, false
	}
	return eventID, true
}
