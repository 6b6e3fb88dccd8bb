package handlers

import (
	"errors"
	"net/http"

	"spinwheel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrAlreadyClaimed), errors.Is(err, services.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, services.ErrExpired):
		return http.StatusGone
	case errors.Is(err, services.ErrWheelInactive):
		return http.StatusForbidden
	case errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrGenerationExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// failWith writes err with its mapped status. Unexpected errors are logged
// and hidden from the client.
func failWith(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		fail(c, status, "internal error")
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.Warningf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	fail(c, status, err.Error())
}

// failWithData is failWith for errors that come with the current state of
// the record, such as a prize that was already claimed.
func failWithData(c *gin.Context, err error, data any) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"ok": false, "error": err.Error(), "data": data})
}
