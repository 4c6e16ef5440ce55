package response

import (
	"github.com/gin-gonic/gin"

	"ticketly/internal/shared/apperrors"
)

// Envelope is the body shape every handler returns, success or failure.
// Clients switch on Status and read Errors for machine-readable detail.
type Envelope struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
}

// RespondJSON writes the envelope with the given HTTP status.
func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, Envelope{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a service error to the standard envelope. Tagged errors
// carry their own status code and machine-readable payload; anything else is
// reported as an internal error without leaking the cause.
func RespondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := "Internal server error"
	if e, ok := apperrors.AsError(err); ok && e.Kind != apperrors.KindFatal {
		message = e.Message
	}
	RespondJSON(c, "error", status, message, nil, apperrors.Payload(err))
}
