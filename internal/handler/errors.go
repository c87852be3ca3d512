package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/examsession"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// classify maps a domain error onto an HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, repository.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, repository.ErrSubmissionNotFound):
		return http.StatusNotFound, response.ErrSubmissionAbsent
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrInvalidEntryToken):
		return http.StatusForbidden, response.ErrInvalidEntryToken
	case errors.Is(err, service.ErrShuttingDown):
		return http.StatusServiceUnavailable, response.ErrUnavailable
	case errors.Is(err, examsession.ErrUnknownQuestion):
		return http.StatusUnprocessableEntity, response.ErrUnknownQuestion
	case errors.Is(err, examsession.ErrOptionOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrOptionOutOfRange
	case errors.Is(err, examsession.ErrSessionFinished):
		return http.StatusConflict, response.ErrSessionFinished
	case errors.Is(err, examsession.ErrExitConfirmPending):
		return http.StatusConflict, response.ErrExitConfirmPending
	case errors.Is(err, examsession.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFromError writes the envelope for err.
func failFromError(c *gin.Context, err error) {
	status, code := classify(err)
	response.Fail(c, status, code)
}
