package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/yelinaung/expense-claims/internal/audit"
	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/gemini"
	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
	"gitlab.com/yelinaung/expense-claims/internal/notify"
)

// respondError maps a domain error to a status code and {"error": ...} body.
// Unrecognized errors are logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error().
			Err(err).
			Str("request_id", c.GetString(requestIDHeader)).
			Str("route", c.FullPath()).
			Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var transition *expense.TransitionError
	var validation *expense.ValidationError

	// TransitionError also matches ErrInvalidStatus, so it is checked first.
	switch {
	case errors.As(err, &transition):
		return http.StatusConflict, transition.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, expense.ErrForbidden):
		return http.StatusForbidden, expense.ErrForbidden.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, audit.ErrInvalidAction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrRegistrationDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidName),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, gemini.ErrEmptyNotes),
		errors.Is(err, notify.ErrInvalidLinkCode):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
