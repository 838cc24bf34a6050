package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
)

// failServiceErr maps a service-layer error to its HTTP status and API
// error code. Every handler funnels service errors through here so the
// mapping stays in one place.
func failServiceErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrTestNotStartable):
		response.Fail(c, http.StatusConflict, response.ErrTestNotStartable)
	case errors.Is(err, service.ErrAccessCodeRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrAccessCodeRequired)
	case errors.Is(err, service.ErrInvalidAccessCode):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAccessCode)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrQuestionNotInSession):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInSession)
	case errors.Is(err, service.ErrRequiresManualGrading):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrRequiresManualGrading)
	case errors.Is(err, service.ErrSubmissionConflict):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionConflict)
	case errors.Is(err, service.ErrStorageUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
