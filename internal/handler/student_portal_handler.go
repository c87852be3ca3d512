package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
)

// SubmissionReader looks up persisted submissions.
type SubmissionReader interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error)
}

// StudentPortalHandler handles student-facing exam session endpoints.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	submissions    SubmissionReader
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	submissions SubmissionReader,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		submissions:    submissions,
	}
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/sessions
// Validates the entry token and opens a session (idempotent per student).
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	res, err := h.sessionService.Start(c.Request.Context(), c.Param("exam_id"), claims.UserID, req.EntryToken)
	if err != nil {
		failFromError(c, err)
		return
	}

	paper, err := h.sessionService.Paper(res.Snapshot.SessionID, claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"session": res.Snapshot, "exam": paper})
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
// Covers page reloads: the client gets the ledger, cursor and remaining time.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	h.withSession(c, h.sessionService.Snapshot)
}

// GetPaper godoc
// GET /api/v1/student/sessions/:session_id/paper
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	sessionID, studentID, ok := sessionParams(c)
	if !ok {
		return
	}

	paper, err := h.sessionService.Paper(sessionID, studentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": paper})
}

// DiscardSession godoc
// DELETE /api/v1/student/sessions/:session_id
// Tears the screen down without submitting.
func (h *StudentPortalHandler) DiscardSession(c *gin.Context) {
	sessionID, studentID, ok := sessionParams(c)
	if !ok {
		return
	}

	if err := h.sessionService.Discard(sessionID, studentID); err != nil {
		failFromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordAnswer godoc
// POST /api/v1/student/sessions/:session_id/answers
func (h *StudentPortalHandler) RecordAnswer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.withSession(c, func(id uuid.UUID, student int) (model.SessionSnapshot, error) {
		return h.sessionService.Answer(id, student, req.QuestionID, *req.Option)
	})
}

// MoveCursor godoc
// POST /api/v1/student/sessions/:session_id/cursor
func (h *StudentPortalHandler) MoveCursor(c *gin.Context) {
	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	h.withSession(c, func(id uuid.UUID, student int) (model.SessionSnapshot, error) {
		return h.sessionService.GoTo(id, student, req.QuestionID)
	})
}

// OpenOverview godoc
// POST /api/v1/student/sessions/:session_id/overview/open
func (h *StudentPortalHandler) OpenOverview(c *gin.Context) {
	h.withSession(c, h.sessionService.OpenOverview)
}

// CloseOverview godoc
// POST /api/v1/student/sessions/:session_id/overview/close
func (h *StudentPortalHandler) CloseOverview(c *gin.Context) {
	h.withSession(c, h.sessionService.CloseOverview)
}

// Back godoc
// POST /api/v1/student/sessions/:session_id/back
func (h *StudentPortalHandler) Back(c *gin.Context) {
	h.withSession(c, h.sessionService.Back)
}

// ConfirmExit godoc
// POST /api/v1/student/sessions/:session_id/exit/confirm
func (h *StudentPortalHandler) ConfirmExit(c *gin.Context) {
	h.withSession(c, h.sessionService.ConfirmExit)
}

// CancelExit godoc
// POST /api/v1/student/sessions/:session_id/exit/cancel
func (h *StudentPortalHandler) CancelExit(c *gin.Context) {
	h.withSession(c, h.sessionService.CancelExit)
}

// Submit godoc
// POST /api/v1/student/sessions/:session_id/submit
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	h.withSession(c, h.sessionService.Submit)
}

// GetSubmission godoc
// GET /api/v1/student/sessions/:session_id/submission
// Returns the stored ledger once the worker has persisted it.
func (h *StudentPortalHandler) GetSubmission(c *gin.Context) {
	sessionID, studentID, ok := sessionParams(c)
	if !ok {
		return
	}

	sub, err := h.submissions.GetBySession(c.Request.Context(), sessionID)
	if err != nil {
		failFromError(c, err)
		return
	}
	// SECURITY: never reveal another student's ledger.
	if sub.StudentID != studentID {
		response.Fail(c, http.StatusNotFound, response.ErrSubmissionAbsent)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// withSession resolves the path and caller, runs op and writes the snapshot.
func (h *StudentPortalHandler) withSession(c *gin.Context, op func(uuid.UUID, int) (model.SessionSnapshot, error)) {
	sessionID, studentID, ok := sessionParams(c)
	if !ok {
		return
	}

	snap, err := op(sessionID, studentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

func sessionParams(c *gin.Context) (uuid.UUID, int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, 0, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, 0, false
	}
	return sessionID, claims.UserID, true
}
