package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/response"
)

// ExamHandler serves the exam catalog.
type ExamHandler struct {
	catalog repository.ExamCatalog
	log     zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(catalog repository.ExamCatalog, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		catalog: catalog,
		log:     log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List exams failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/exams/:exam_id
// Returns the summary only; questions are revealed once a session starts.
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, err := h.catalog.Get(c.Request.Context(), c.Param("exam_id"))
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam.Summary()})
}
