package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/shared/apperrors"
)

func record(write func(*gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	write(ctx)
	return rec
}

func TestRespondJSONWritesEnvelope(t *testing.T) {
	rec := record(func(ctx *gin.Context) {
		RespondJSON(ctx, "success", http.StatusCreated, "created", map[string]string{"id": "1"}, nil)
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "created", env.Message)
	assert.NotNil(t, env.Data)
	assert.Nil(t, env.Errors)
}

func TestRespondErrorUsesTaggedStatusAndPayload(t *testing.T) {
	rec := record(func(ctx *gin.Context) {
		RespondError(ctx, apperrors.Validation("quantity must be positive"))
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantity must be positive")
}

func TestRespondErrorHidesUntaggedCause(t *testing.T) {
	rec := record(func(ctx *gin.Context) {
		RespondError(ctx, assert.AnError)
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
