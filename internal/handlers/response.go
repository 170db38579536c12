package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondMapped picks the HTTP status from the error's classification so
// handlers never string-match storage errors.
func RespondMapped(c *gin.Context, err error) {
	var se *apperr.StoreError
	if errors.As(err, &se) {
		switch se.Code {
		case apperr.StoreErrorNotFound:
			RespondError(c, http.StatusNotFound, "not_found", err)
		case apperr.StoreErrorUnique:
			RespondError(c, http.StatusConflict, "conflict", err)
		case apperr.StoreErrorForeignKey:
			RespondError(c, http.StatusBadRequest, "invalid_reference", err)
		default:
			RespondError(c, http.StatusInternalServerError, "storage_error", err)
		}
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperr.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
