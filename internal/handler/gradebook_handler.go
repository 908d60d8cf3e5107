package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/middleware"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/response"
)

type gradebookService interface {
	CreateSettings(ctx context.Context, studentID string, req dto.CreateSettingsRequest) (*models.GradeBoard, error)
	SetupPastYear(ctx context.Context, studentID string, req dto.SetupPastYearRequest) (*models.GradeBoard, error)
	GetSettings(ctx context.Context, studentID, academicYear string) (*models.GradeSettings, error)
	LockSettings(ctx context.Context, studentID, settingsID string) (*models.GradeSettings, error)
	ListEnrollments(ctx context.Context, studentID, academicYear string) ([]models.SubjectEnrollment, error)
	CreateEnrollment(ctx context.Context, studentID string, req dto.CreateEnrollmentRequest) (*models.SubjectEnrollment, error)
	UpdateEnrollment(ctx context.Context, studentID, enrollmentID string, patch models.EnrollmentPatch) (*models.SubjectEnrollment, error)
	Board(ctx context.Context, studentID, academicYear string) (*models.GradeBoard, error)
	ListAnnualGrades(ctx context.Context, studentID, academicYear string) ([]models.AnnualGradeView, error)
	UpdateAnnualGrade(ctx context.Context, studentID string, req dto.UpdateAnnualGradeRequest) (*models.AnnualSubjectGrade, error)
}

// GradebookHandler exposes year settings, enrollments and the grade board.
type GradebookHandler struct {
	service gradebookService
}

// NewGradebookHandler builds a new handler.
func NewGradebookHandler(service gradebookService) *GradebookHandler {
	return &GradebookHandler{service: service}
}

// GetSettings godoc
// @Summary Get grade settings for an academic year
// @Tags Grades
// @Produce json
// @Param academicYear path string true "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/settings/{academicYear} [get]
func (h *GradebookHandler) GetSettings(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	settings, err := h.service.GetSettings(c.Request.Context(), studentID, c.Param("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}

// CreateSettings godoc
// @Summary Configure an academic year and enroll its subjects
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.CreateSettingsRequest true "Settings payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/settings [post]
func (h *GradebookHandler) CreateSettings(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid settings payload"))
		return
	}
	board, err := h.service.CreateSettings(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, board)
}

// LockSettings godoc
// @Summary Lock the settings of a year
// @Tags Grades
// @Produce json
// @Param id path string true "Settings ID"
// @Success 200 {object} response.Envelope
// @Router /grades/settings/{id}/lock [patch]
func (h *GradebookHandler) LockSettings(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	settings, err := h.service.LockSettings(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}

// SetupPastYear godoc
// @Summary Import a past year with locked annual grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.SetupPastYearRequest true "Past year payload"
// @Success 201 {object} response.Envelope
// @Router /grades/setup-past-year [post]
func (h *GradebookHandler) SetupPastYear(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SetupPastYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid past year payload"))
		return
	}
	board, err := h.service.SetupPastYear(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, board)
}

// ListEnrollments godoc
// @Summary List subject enrollments of a year
// @Tags Grades
// @Produce json
// @Param academicYear query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /grades/enrollments [get]
func (h *GradebookHandler) ListEnrollments(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), studentID, c.Query("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, map[string]interface{}{"total": len(enrollments)})
}

// CreateEnrollment godoc
// @Summary Enroll a subject mid-year
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /grades/enrollments [post]
func (h *GradebookHandler) CreateEnrollment(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid enrollment payload"))
		return
	}
	enrollment, err := h.service.CreateEnrollment(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateEnrollment godoc
// @Summary Toggle enrollment flags
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.EnrollmentPatch true "Enrollment flags"
// @Success 200 {object} response.Envelope
// @Router /grades/enrollments/{id} [patch]
func (h *GradebookHandler) UpdateEnrollment(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var patch models.EnrollmentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, bindError(err, "invalid enrollment payload"))
		return
	}
	enrollment, err := h.service.UpdateEnrollment(c.Request.Context(), studentID, c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Board godoc
// @Summary Get the grade board of a year
// @Tags Grades
// @Produce json
// @Param academicYear path string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /grades/board/{academicYear} [get]
func (h *GradebookHandler) Board(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	board, err := h.service.Board(c.Request.Context(), studentID, c.Param("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, board.Cached)
	response.JSON(c, http.StatusOK, board, middleware.ExtractMeta(c))
}

// ListAnnualGrades godoc
// @Summary List annual grades of a year
// @Tags Grades
// @Produce json
// @Param academicYear path string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /grades/annual/{academicYear} [get]
func (h *GradebookHandler) ListAnnualGrades(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	grades, err := h.service.ListAnnualGrades(c.Request.Context(), studentID, c.Param("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades)
}

// UpdateAnnualGrade godoc
// @Summary Set a past-year annual grade directly
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UpdateAnnualGradeRequest true "Annual grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/annual-grade [patch]
func (h *GradebookHandler) UpdateAnnualGrade(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateAnnualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid annual grade payload"))
		return
	}
	grade, err := h.service.UpdateAnnualGrade(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}
