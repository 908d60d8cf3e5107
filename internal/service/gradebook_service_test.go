package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/cache"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

const testStudent = "student-1"

func trimestralSettings(year string, subjects ...string) dto.CreateSettingsRequest {
	regime := models.RegimeTrimestral
	return dto.CreateSettingsRequest{
		AcademicYear:         year,
		EducationLevel:       models.EducationSecundario,
		GraduationCohortYear: intPtr(2026),
		Regime:               &regime,
		PeriodWeights:        []decimal.Decimal{dec("30"), dec("30"), dec("40")},
		SubjectIDs:           subjects,
		YearLevel:            "12",
	}
}

func newGradebookForTest(t *testing.T) (*GradebookService, *memGradebook, *memoryCacheRepo) {
	t.Helper()
	db := newMemGradebook()
	cacheRepo := &memoryCacheRepo{}
	params := db.params()
	params.Cache = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	return NewGradebookService(params), db, cacheRepo
}

func TestCreateSettingsEnrollsSubjectsWithEmptyPeriods(t *testing.T) {
	svc, db, _ := newGradebookForTest(t)
	req := trimestralSettings("2024-2025", "mat", "por")
	req.ExamCandidateSubjectIDs = []string{"mat"}

	board, err := svc.CreateSettings(context.Background(), testStudent, req)
	require.NoError(t, err)

	require.NotNil(t, board.Settings)
	assert.Equal(t, "2024-2025", board.Settings.AcademicYear)
	require.Len(t, board.Subjects, 2)
	for _, subject := range board.Subjects {
		require.Len(t, subject.Periods, 3)
		assert.Equal(t, 1, subject.Periods[0].PeriodNumber)
		assert.Nil(t, subject.Periods[0].PautaGrade)
		assert.Nil(t, subject.AnnualGrade)
	}
	assert.True(t, board.Subjects[0].Enrollment.IsExamCandidate)
	assert.False(t, board.Subjects[1].Enrollment.IsExamCandidate)
	assert.Len(t, db.periods, 6)
}

func TestCreateSettingsRejectsInvalidWeights(t *testing.T) {
	svc, db, _ := newGradebookForTest(t)

	req := trimestralSettings("2024-2025", "mat")
	req.PeriodWeights = []decimal.Decimal{dec("30"), dec("30"), dec("39")}
	_, err := svc.CreateSettings(context.Background(), testStudent, req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidWeights.Code))

	semestral := models.RegimeSemestral
	req = trimestralSettings("2024-2025", "mat")
	req.Regime = &semestral
	_, err = svc.CreateSettings(context.Background(), testStudent, req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidWeights.Code))

	assert.Empty(t, db.settings)
}

func TestCreateSettingsConflictsOnExistingYear(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	_, err := svc.CreateSettings(context.Background(), testStudent, trimestralSettings("2024-2025"))
	require.NoError(t, err)

	_, err = svc.CreateSettings(context.Background(), testStudent, trimestralSettings("2024-2025"))
	require.Error(t, err)
	assert.Equal(t, 409, appErrors.FromError(err).Status)
}

func TestCreateSettingsImportsLockedPastYears(t *testing.T) {
	svc, db, _ := newGradebookForTest(t)
	req := trimestralSettings("2024-2025", "mat")
	req.PastYearGrades = []dto.PastYearGrade{
		{SubjectID: "mat", YearLevel: "10", AcademicYear: "2022-2023", AnnualGrade: intPtr(14)},
		{SubjectID: "mat", YearLevel: "11", AcademicYear: "2023-2024", AnnualGrade: intPtr(16)},
		{SubjectID: "fil", YearLevel: "11", AcademicYear: "2023-2024"},
	}

	_, err := svc.CreateSettings(context.Background(), testStudent, req)
	require.NoError(t, err)

	past, err := svc.GetSettings(context.Background(), testStudent, "2023-2024")
	require.NoError(t, err)
	assert.True(t, past.IsLocked)
	assert.Equal(t, models.EducationSecundario, past.EducationLevel)

	grades, err := svc.ListAnnualGrades(context.Background(), testStudent, "2023-2024")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "mat", grades[0].SubjectID)
	assert.Equal(t, 16, grades[0].AnnualGrade)
	assert.True(t, grades[0].IsLocked)

	enrollments, err := svc.ListEnrollments(context.Background(), testStudent, "2023-2024")
	require.NoError(t, err)
	assert.Len(t, enrollments, 2)
	assert.Len(t, db.settings, 3)
}

func TestSetupPastYear(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	_, err := svc.SetupPastYear(context.Background(), testStudent, dto.SetupPastYearRequest{AcademicYear: "2022-2023", YearLevel: "10"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.CreateSettings(context.Background(), testStudent, trimestralSettings("2024-2025", "mat"))
	require.NoError(t, err)

	board, err := svc.SetupPastYear(context.Background(), testStudent, dto.SetupPastYearRequest{
		AcademicYear: "2022-2023",
		YearLevel:    "10",
		Subjects:     []dto.PastYearSubject{{SubjectID: "mat", AnnualGrade: intPtr(13)}},
	})
	require.NoError(t, err)
	require.NotNil(t, board.Settings)
	assert.True(t, board.Settings.IsLocked)
	require.Len(t, board.Subjects, 1)
	require.NotNil(t, board.Subjects[0].AnnualGrade)
	assert.Equal(t, 13, board.Subjects[0].AnnualGrade.AnnualGrade)
	assert.Len(t, board.Subjects[0].Periods, 3)
}

func TestCreateEnrollment(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	ctx := context.Background()
	req := dto.CreateEnrollmentRequest{SubjectID: "bio", AcademicYear: "2024-2025", YearLevel: "12"}

	_, err := svc.CreateEnrollment(ctx, testStudent, req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.CreateSettings(ctx, testStudent, trimestralSettings("2024-2025"))
	require.NoError(t, err)

	enrollment, err := svc.CreateEnrollment(ctx, testStudent, req)
	require.NoError(t, err)
	assert.Equal(t, "bio", enrollment.SubjectID)
	assert.True(t, enrollment.IsActive)

	board, err := svc.Board(ctx, testStudent, "2024-2025")
	require.NoError(t, err)
	require.Len(t, board.Subjects, 1)
	assert.Len(t, board.Subjects[0].Periods, 3)

	_, err = svc.CreateEnrollment(ctx, testStudent, req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestUpdateEnrollment(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	ctx := context.Background()
	board, err := svc.CreateSettings(ctx, testStudent, trimestralSettings("2024-2025", "mat"))
	require.NoError(t, err)
	enrollmentID := board.Subjects[0].Enrollment.ID

	_, err = svc.UpdateEnrollment(ctx, testStudent, enrollmentID, models.EnrollmentPatch{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	candidate := true
	updated, err := svc.UpdateEnrollment(ctx, testStudent, enrollmentID, models.EnrollmentPatch{IsExamCandidate: &candidate})
	require.NoError(t, err)
	assert.True(t, updated.IsExamCandidate)

	_, err = svc.UpdateEnrollment(ctx, "someone-else", enrollmentID, models.EnrollmentPatch{IsExamCandidate: &candidate})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestBoardIsCachedAndInvalidated(t *testing.T) {
	svc, db, cacheRepo := newGradebookForTest(t)
	ctx := context.Background()

	empty, err := svc.Board(ctx, testStudent, "2024-2025")
	require.NoError(t, err)
	assert.Nil(t, empty.Settings)
	assert.Empty(t, empty.Subjects)

	_, err = svc.CreateSettings(ctx, testStudent, trimestralSettings("2024-2025", "mat"))
	require.NoError(t, err)
	key := cache.BoardKey(testStudent, "2024-2025")
	require.Contains(t, cacheRepo.store, key)

	// a write behind the service's back is invisible until invalidation
	db.subjects["mat"] = subjectFacts{name: "Matemática A", affectsCFS: true}
	cached, err := svc.Board(ctx, testStudent, "2024-2025")
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Nil(t, cached.Subjects[0].Enrollment.SubjectName)

	_, err = svc.CreateEnrollment(ctx, testStudent, dto.CreateEnrollmentRequest{SubjectID: "por", AcademicYear: "2024-2025", YearLevel: "12"})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.invalidated, cache.StudentBoardsPattern(testStudent))

	fresh, err := svc.Board(ctx, testStudent, "2024-2025")
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	require.Len(t, fresh.Subjects, 2)
	require.NotNil(t, fresh.Subjects[0].Enrollment.SubjectName)
	assert.Equal(t, "Matemática A", *fresh.Subjects[0].Enrollment.SubjectName)
}

func TestUpdateAnnualGrade(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	ctx := context.Background()

	_, err := svc.UpdateAnnualGrade(ctx, testStudent, dto.UpdateAnnualGradeRequest{SubjectID: "mat", AcademicYear: "2022-2023", AnnualGrade: intPtr(12)})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.Contains(t, err.Error(), "2022-2023")

	req := trimestralSettings("2024-2025")
	req.PastYearGrades = []dto.PastYearGrade{{SubjectID: "mat", YearLevel: "10", AcademicYear: "2022-2023", AnnualGrade: intPtr(11)}}
	_, err = svc.CreateSettings(ctx, testStudent, req)
	require.NoError(t, err)

	grade, err := svc.UpdateAnnualGrade(ctx, testStudent, dto.UpdateAnnualGradeRequest{SubjectID: "mat", AcademicYear: "2022-2023", AnnualGrade: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12, grade.AnnualGrade)
	assert.True(t, grade.RawAnnual.Equal(dec("12")))
	assert.True(t, grade.IsLocked)

	_, err = svc.UpdateAnnualGrade(ctx, testStudent, dto.UpdateAnnualGradeRequest{SubjectID: "mat", AcademicYear: "2022-2023", AnnualGrade: intPtr(21)})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestLockSettings(t *testing.T) {
	svc, _, _ := newGradebookForTest(t)
	ctx := context.Background()
	board, err := svc.CreateSettings(ctx, testStudent, trimestralSettings("2024-2025"))
	require.NoError(t, err)

	locked, err := svc.LockSettings(ctx, testStudent, board.Settings.ID)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)

	_, err = svc.LockSettings(ctx, testStudent, "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
