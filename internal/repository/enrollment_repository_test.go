package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-engine-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "student_id", "subject_id", "academic_year", "year_level", "settings_id", "is_active", "is_exam_candidate", "created_at", "updated_at",
	"subject_name", "subject_slug", "subject_color", "subject_icon", "affects_cfs", "has_national_exam"}

func TestEnrollmentRepositoryListByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "stu-1", "sub-pt", "2024-2025", "12", "set-1", true, true, now, now, "Português", "portugues", nil, nil, true, true).
		AddRow("enr-2", "stu-1", "sub-ef", "2024-2025", "12", "set-1", true, false, now, now, "Educação Física", "ed-fisica", nil, nil, false, false)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.academic_year = $2 ORDER BY e.created_at")).
		WithArgs("stu-1", "2024-2025").
		WillReturnRows(rows)

	enrollments, err := repo.ListByYear(context.Background(), "stu-1", "2024-2025")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "Português", *enrollments[0].SubjectName)
	assert.True(t, enrollments[0].HasNationalExam)
	assert.False(t, enrollments[1].AffectsCFS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateBuildsPartialSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	candidate := true
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subject_enrollments SET is_exam_candidate = $1, updated_at = $2 WHERE id = $3 AND student_id = $4")).
		WithArgs(true, sqlmock.AnyArg(), "enr-1", "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "enr-1", "stu-1", models.EnrollmentPatch{IsExamCandidate: &candidate})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
