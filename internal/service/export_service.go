package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
	"github.com/noah-isme/grade-engine-api/pkg/export"
)

// Snapshot export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var snapshotHeaders = []string{"Subject", "CFD", "Duration (years)", "Weight", "Exam", "Affects CFS"}

type snapshotSource interface {
	LatestSnapshot(ctx context.Context, studentID string) (*models.CFSSnapshot, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered snapshot ready to be sent as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the latest CFS snapshot as CSV or PDF.
type ExportService struct {
	snapshots snapshotSource
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(snapshots snapshotSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{snapshots: snapshots, csv: csv, pdf: pdf, logger: logger}
}

// ExportSnapshot renders the latest snapshot of the student in the given format.
func (s *ExportService) ExportSnapshot(ctx context.Context, studentID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}

	snapshot, err := s.snapshots.LatestSnapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	dataset := SnapshotDataset(snapshot)
	title := fmt.Sprintf("CFS %s", snapshot.AcademicYear)

	var body []byte
	contentType := "text/csv"
	switch format {
	case ExportFormatPDF:
		body, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("render snapshot export", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render snapshot")
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("cfs_%s.%s", sanitizeFilename(snapshot.AcademicYear), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// SnapshotDataset flattens a snapshot breakdown into export rows, sorted by
// subject name, with the totals as notes.
func SnapshotDataset(snapshot *models.CFSSnapshot) export.Dataset {
	subjects := append([]models.SnapshotSubject(nil), snapshot.CFDSnapshot.Subjects...)
	sort.SliceStable(subjects, func(i, j int) bool {
		return subjectLabel(subjects[i]) < subjectLabel(subjects[j])
	})

	rows := make([]map[string]string, 0, len(subjects))
	for _, subject := range subjects {
		exam := "-"
		if subject.ExamGrade != nil {
			exam = strconv.Itoa(*subject.ExamGrade)
		}
		rows = append(rows, map[string]string{
			"Subject":          subjectLabel(subject),
			"CFD":              strconv.Itoa(subject.CFDGrade),
			"Duration (years)": strconv.Itoa(subject.DurationYears),
			"Weight":           strconv.Itoa(subject.Weight),
			"Exam":             exam,
			"Affects CFS":      yesNo(subject.AffectsCFS),
		})
	}
	return export.Dataset{
		Headers: snapshotHeaders,
		Rows:    rows,
		Notes: []string{
			fmt.Sprintf("CFS: %s", snapshot.CFSValue.StringFixed(1)),
			fmt.Sprintf("DGES: %d", snapshot.DGESValue),
			fmt.Sprintf("Formula: %s", snapshot.FormulaUsed),
		},
	}
}

func subjectLabel(subject models.SnapshotSubject) string {
	if subject.Name != nil && *subject.Name != "" {
		return *subject.Name
	}
	return subject.SubjectID
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
