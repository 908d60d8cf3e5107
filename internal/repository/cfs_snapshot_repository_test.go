package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-engine-api/internal/models"
)

func TestCFSSnapshotRepositoryLatestDecodesBreakdown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCFSSnapshotRepository(db)

	breakdown := `{"subjects":[{"subject_id":"sub-pt","name":"Português","cfd_grade":15,"duration_years":3,"weight":3,"has_exam":true,"exam_grade":15,"affects_cfs":true}],"formula":"weighted_mean","cohort":2026}`
	rows := sqlmock.NewRows([]string{"id", "student_id", "academic_year", "graduation_cohort_year", "cfs_value", "dges_value", "formula_used", "cfd_snapshot", "is_finalized", "created_at"}).
		AddRow("snap-1", "stu-1", "2025-2026", 2026, "15.0", 150, "weighted_mean", breakdown, true, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_cfs_snapshot WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	snapshot, err := repo.Latest(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.True(t, snapshot.CFSValue.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 150, snapshot.DGESValue)
	require.Len(t, snapshot.CFDSnapshot.Subjects, 1)
	assert.Equal(t, 3, snapshot.CFDSnapshot.Subjects[0].Weight)
	assert.Equal(t, models.FormulaWeightedMean, snapshot.CFDSnapshot.Formula)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCFSSnapshotRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCFSSnapshotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, academic_year) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	snapshot := &models.CFSSnapshot{StudentID: "stu-1", AcademicYear: "2025-2026", FormulaUsed: models.FormulaSimpleMean}
	require.NoError(t, repo.Upsert(context.Background(), snapshot))
	assert.NotEmpty(t, snapshot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
