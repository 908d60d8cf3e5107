package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/middleware"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/internal/service"
	"github.com/noah-isme/grade-engine-api/pkg/response"
)

type cfsService interface {
	Dashboard(ctx context.Context, studentID string) (*models.CFSDashboard, error)
	UpdateExamGrade(ctx context.Context, studentID, cfdID string, req dto.ExamGradeRequest) (*models.SubjectCFD, error)
	UpdateBasicoExamGrade(ctx context.Context, studentID, cfdID string, req dto.BasicoExamGradeRequest) (*models.SubjectCFD, error)
	CreateSnapshot(ctx context.Context, studentID string, req dto.CreateSnapshotRequest) (*models.CFSSnapshot, error)
	LatestSnapshot(ctx context.Context, studentID string) (*models.CFSSnapshot, error)
}

type snapshotExporter interface {
	ExportSnapshot(ctx context.Context, studentID, format string) (*service.ExportResult, error)
}

// CFSHandler exposes the CFD dashboard, exam entry and CFS snapshots.
type CFSHandler struct {
	service  cfsService
	exporter snapshotExporter
}

// NewCFSHandler builds a new handler.
func NewCFSHandler(service cfsService, exporter snapshotExporter) *CFSHandler {
	return &CFSHandler{service: service, exporter: exporter}
}

// Dashboard godoc
// @Summary Recompute and list every CFD with the current CFS
// @Tags CFS
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/cfs [get]
func (h *CFSHandler) Dashboard(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	dashboard, err := h.service.Dashboard(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, middleware.ExtractMeta(c))
}

// UpdateExam godoc
// @Summary Record a national exam score (0-200)
// @Tags CFS
// @Accept json
// @Produce json
// @Param id path string true "CFD ID"
// @Param payload body dto.ExamGradeRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/cfd/{id}/exam [patch]
func (h *CFSHandler) UpdateExam(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ExamGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid exam payload"))
		return
	}
	cfd, err := h.service.UpdateExamGrade(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfd)
}

// UpdateBasicoExam godoc
// @Summary Record a Prova Final percentage
// @Tags CFS
// @Accept json
// @Produce json
// @Param id path string true "CFD ID"
// @Param payload body dto.BasicoExamGradeRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/cfd/{id}/basico-exam [patch]
func (h *CFSHandler) UpdateBasicoExam(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BasicoExamGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid exam payload"))
		return
	}
	cfd, err := h.service.UpdateBasicoExamGrade(c.Request.Context(), studentID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfd)
}

// CreateSnapshot godoc
// @Summary Finalize the CFS of an academic year
// @Tags CFS
// @Accept json
// @Produce json
// @Param payload body dto.CreateSnapshotRequest true "Snapshot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/cfs/snapshot [post]
func (h *CFSHandler) CreateSnapshot(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid snapshot payload"))
		return
	}
	snapshot, err := h.service.CreateSnapshot(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snapshot)
}

// LatestSnapshot godoc
// @Summary Get the latest CFS snapshot
// @Tags CFS
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/cfs/snapshot [get]
func (h *CFSHandler) LatestSnapshot(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	snapshot, err := h.service.LatestSnapshot(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot)
}

// ExportSnapshot godoc
// @Summary Download the latest CFS snapshot
// @Tags CFS
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /grades/cfs/snapshot/export [get]
func (h *CFSHandler) ExportSnapshot(c *gin.Context) {
	studentID, err := studentIDFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exporter.ExportSnapshot(c.Request.Context(), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.ContentType, result.Filename, result.Body)
}
