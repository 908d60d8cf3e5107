package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/response"
)

type periodGradeService interface {
	UpdatePeriodGrade(ctx context.Context, studentID, periodID string, req dto.UpdatePeriodGradeRequest) (*models.SubjectPeriod, error)
	OverridePeriodGrade(ctx context.Context, studentID, periodID string, req dto.OverridePeriodGradeRequest) (*models.SubjectPeriod, error)
	ClearOverride(ctx context.Context, studentID, periodID string) (*models.SubjectPeriod, error)
	ListElements(ctx context.Context, studentID, periodID string) ([]models.EvaluationElement, error)
	ReplaceElements(ctx context.Context, studentID, periodID string, req dto.ReplaceElementsRequest) ([]models.EvaluationElement, error)
	UpdateElementGrade(ctx context.Context, studentID, elementID string, req dto.UpdateElementGradeRequest) (*models.EvaluationElement, error)
	CopyElements(ctx context.Context, studentID, periodID string) (int, error)
}

// PeriodHandler exposes pauta entry and evaluation element endpoints.
type PeriodHandler struct {
	service periodGradeService
}

// NewPeriodHandler builds a new handler.
func NewPeriodHandler(service periodGradeService) *PeriodHandler {
	return &PeriodHandler{service: service}
}

// UpdatePeriod godoc
// @Summary Enter a period pauta directly
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.UpdatePeriodGradeRequest true "Pauta payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/periods/{id} [patch]
func (h *PeriodHandler) UpdatePeriod(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdatePeriodGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid period grade payload"))
		return
	}
	period, err := h.service.UpdatePeriodGrade(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period)
}

// Override godoc
// @Summary Override a period pauta with a reason
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.OverridePeriodGradeRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /grades/periods/{id}/override [patch]
func (h *PeriodHandler) Override(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.OverridePeriodGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid override payload"))
		return
	}
	period, err := h.service.OverridePeriodGrade(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period)
}

// ClearOverride godoc
// @Summary Restore the calculated pauta
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /grades/periods/{id}/override [delete]
func (h *PeriodHandler) ClearOverride(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	period, err := h.service.ClearOverride(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period)
}

// ListElements godoc
// @Summary List evaluation elements of a period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /grades/periods/{id}/elements [get]
func (h *PeriodHandler) ListElements(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	elements, err := h.service.ListElements(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elements)
}

// ReplaceElements godoc
// @Summary Replace the evaluation elements of a period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.ReplaceElementsRequest true "Elements payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/periods/{id}/elements [put]
func (h *PeriodHandler) ReplaceElements(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReplaceElementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid evaluation elements payload"))
		return
	}
	elements, err := h.service.ReplaceElements(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, elements)
}

// CopyElements godoc
// @Summary Copy the element structure to the other periods
// @Tags Periods
// @Produce json
// @Param id path string true "Source period ID"
// @Success 200 {object} response.Envelope
// @Router /grades/periods/{id}/copy-elements [post]
func (h *PeriodHandler) CopyElements(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	copied, err := h.service.CopyElements(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CopyElementsResponse{CopiedTo: copied})
}

// UpdateElementGrade godoc
// @Summary Set or clear an element grade
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Element ID"
// @Param payload body dto.UpdateElementGradeRequest true "Element grade"
// @Success 200 {object} response.Envelope
// @Router /grades/elements/{id} [patch]
func (h *PeriodHandler) UpdateElementGrade(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateElementGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid element grade payload"))
		return
	}
	element, err := h.service.UpdateElementGrade(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, element)
}
