package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/response"
)

type quizService interface {
	GradeAttempt(ctx context.Context, req dto.GradeAttemptRequest) (*dto.GradeAttemptResponse, error)
	SubmitAttempt(ctx context.Context, studentID, submissionID string, req dto.SubmitAttemptRequest) (*models.QuizSubmission, error)
	EnqueueRegrade(ctx context.Context, assignmentID string) (*dto.RegradeResponse, error)
}

// QuizHandler exposes quiz auto-grading endpoints.
type QuizHandler struct {
	service quizService
}

// NewQuizHandler builds a new handler.
func NewQuizHandler(service quizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// Grade godoc
// @Summary Grade a quiz attempt against inline questions
// @Tags Quiz
// @Accept json
// @Produce json
// @Param payload body dto.GradeAttemptRequest true "Questions and attempt"
// @Success 200 {object} response.Envelope
// @Router /quiz/grade [post]
func (h *QuizHandler) Grade(c *gin.Context) {
	var req dto.GradeAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid quiz attempt payload"))
		return
	}
	result, err := h.service.GradeAttempt(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Submit godoc
// @Summary Submit and auto-grade an attempt
// @Tags Quiz
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.SubmitAttemptRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quiz/submissions/{id}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid submission payload"))
		return
	}
	submission, err := h.service.SubmitAttempt(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission)
}

// Regrade godoc
// @Summary Queue a regrade of every submitted attempt of an assignment
// @Tags Quiz
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quiz/assignments/{id}/regrade [post]
func (h *QuizHandler) Regrade(c *gin.Context) {
	resp, err := h.service.EnqueueRegrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, resp)
}
