package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func failureStatus(t *testing.T, err error) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	authFailure(ctx, err, "fallback")
	return rec.Code
}

func TestAuthFailureStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusConflict, failureStatus(t, ErrUserAlreadyExists))
	assert.Equal(t, http.StatusUnauthorized, failureStatus(t, ErrInvalidCredentials))
	assert.Equal(t, http.StatusForbidden, failureStatus(t, ErrAccountDisabled))
	assert.Equal(t, http.StatusUnauthorized, failureStatus(t, ErrInvalidToken))
	assert.Equal(t, http.StatusUnauthorized, failureStatus(t, ErrTokenExpired))
	assert.Equal(t, http.StatusNotFound, failureStatus(t, ErrUserNotFound))
	assert.Equal(t, http.StatusInternalServerError, failureStatus(t, errors.New("db down")))
}

func TestAuthFailureUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := errors.Join(errors.New("refresh"), ErrTokenExpired)
	assert.Equal(t, http.StatusUnauthorized, failureStatus(t, wrapped))
}
