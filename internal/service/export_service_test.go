package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
	"github.com/noah-isme/grade-engine-api/pkg/export"
)

type snapshotStub struct {
	snapshot *models.CFSSnapshot
	err      error
}

func (s snapshotStub) LatestSnapshot(context.Context, string) (*models.CFSSnapshot, error) {
	return s.snapshot, s.err
}

type failingCSV struct{}

func (failingCSV) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("disk full")
}

func sampleSnapshot() *models.CFSSnapshot {
	portugues := "Português"
	matematica := "Matemática A"
	return &models.CFSSnapshot{
		ID:                   "snapshot-1",
		StudentID:            testStudent,
		AcademicYear:         "2024/2025",
		GraduationCohortYear: 2025,
		CFSValue:             dec("15.2"),
		DGESValue:            152,
		FormulaUsed:          models.FormulaWeightedMean,
		IsFinalized:          true,
		CFDSnapshot: models.SnapshotBreakdown{
			Formula: models.FormulaWeightedMean,
			Cohort:  2025,
			Subjects: []models.SnapshotSubject{
				{SubjectID: "por", Name: &portugues, CFDGrade: 15, DurationYears: 3, Weight: 3, AffectsCFS: true},
				{SubjectID: "mat", Name: &matematica, CFDGrade: 17, DurationYears: 3, Weight: 3, HasExam: true, ExamGrade: intPtr(18), AffectsCFS: true},
				{SubjectID: "edf", CFDGrade: 19, DurationYears: 3, Weight: 3},
			},
		},
	}
}

func TestSnapshotDatasetSortsSubjectsAndAddsTotals(t *testing.T) {
	data := SnapshotDataset(sampleSnapshot())

	require.Len(t, data.Rows, 3)
	assert.Equal(t, "Matemática A", data.Rows[0]["Subject"])
	assert.Equal(t, "18", data.Rows[0]["Exam"])
	assert.Equal(t, "Português", data.Rows[1]["Subject"])
	assert.Equal(t, "-", data.Rows[1]["Exam"])
	assert.Equal(t, "edf", data.Rows[2]["Subject"])
	assert.Equal(t, "no", data.Rows[2]["Affects CFS"])
	assert.Equal(t, []string{"CFS: 15.2", "DGES: 152", "Formula: weighted_mean"}, data.Notes)
}

func TestExportSnapshotCSV(t *testing.T) {
	svc := NewExportService(snapshotStub{snapshot: sampleSnapshot()}, nil, nil, nil)

	result, err := svc.ExportSnapshot(context.Background(), testStudent, "")
	require.NoError(t, err)
	assert.Equal(t, "cfs_2024-2025.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Subject,CFD,Duration (years),Weight,Exam,Affects CFS", lines[0])
	assert.Equal(t, "Matemática A,17,3,3,18,yes", lines[1])
	assert.Equal(t, "Formula: weighted_mean", lines[6])
}

func TestExportSnapshotPDF(t *testing.T) {
	svc := NewExportService(snapshotStub{snapshot: sampleSnapshot()}, nil, nil, nil)

	result, err := svc.ExportSnapshot(context.Background(), testStudent, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "cfs_2024-2025.pdf", result.Filename)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Body, []byte("%PDF")))
}

func TestExportSnapshotErrors(t *testing.T) {
	svc := NewExportService(snapshotStub{snapshot: sampleSnapshot()}, nil, nil, nil)
	_, err := svc.ExportSnapshot(context.Background(), testStudent, "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	missing := NewExportService(snapshotStub{err: appErrors.Clone(appErrors.ErrNotFound, "CFS snapshot not found")}, nil, nil, nil)
	_, err = missing.ExportSnapshot(context.Background(), testStudent, "csv")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	broken := NewExportService(snapshotStub{snapshot: sampleSnapshot()}, nil, failingCSV{}, nil)
	_, err = broken.ExportSnapshot(context.Background(), testStudent, "csv")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}
