package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

type subjectHistorySeed struct {
	subjectID       string
	grades          []int
	affectsCFS      bool
	hasNationalExam bool
	examCandidate   bool
}

// seedHistory writes one settings row per year and an annual grade for every
// entry of each subject, the first grade in the earliest year.
func seedHistory(db *memGradebook, level models.EducationLevel, cohort *int, subjects ...subjectHistorySeed) {
	years := []string{"2022-2023", "2023-2024", "2024-2025"}
	settingsIDs := make([]string, len(years))
	for i, year := range years {
		id := db.nextID("settings")
		db.settings[id] = models.GradeSettings{
			ID:                   id,
			StudentID:            testStudent,
			AcademicYear:         year,
			EducationLevel:       level,
			GraduationCohortYear: cohort,
			PeriodWeights:        models.Weights{dec("30"), dec("30"), dec("40")},
		}
		settingsIDs[i] = id
	}

	for _, subject := range subjects {
		db.subjects[subject.subjectID] = subjectFacts{
			name:            "Subject " + subject.subjectID,
			affectsCFS:      subject.affectsCFS,
			hasNationalExam: subject.hasNationalExam,
		}
		offset := len(years) - len(subject.grades)
		for i, grade := range subject.grades {
			yearIdx := offset + i
			id := db.nextID("enrollment")
			db.enrollments[id] = models.SubjectEnrollment{
				ID:              id,
				StudentID:       testStudent,
				SubjectID:       subject.subjectID,
				AcademicYear:    years[yearIdx],
				YearLevel:       fmt.Sprintf("%d", 10+yearIdx),
				SettingsID:      settingsIDs[yearIdx],
				IsActive:        true,
				IsExamCandidate: subject.examCandidate && i == len(subject.grades)-1,
			}
			db.enrollmentOrder = append(db.enrollmentOrder, id)
			db.annuals[id] = models.AnnualSubjectGrade{
				ID:           db.nextID("annual"),
				EnrollmentID: id,
				RawAnnual:    dec(fmt.Sprintf("%d", grade)),
				AnnualGrade:  grade,
			}
		}
	}
}

func newCFSForTest(db *memGradebook) *CFSService {
	params := db.cfsParams()
	params.Policy = grading.DefaultPolicy()
	return NewCFSService(params)
}

func cfdFor(t *testing.T, dashboard *models.CFSDashboard, subjectID string) models.CFDView {
	t.Helper()
	for _, c := range dashboard.CFDs {
		if c.SubjectID == subjectID {
			return c
		}
	}
	t.Fatalf("no CFD for subject %s", subjectID)
	return models.CFDView{}
}

func TestDashboardWithoutSettingsIsEmpty(t *testing.T) {
	svc := newCFSForTest(newMemGradebook())
	dashboard, err := svc.Dashboard(context.Background(), testStudent)
	require.NoError(t, err)
	assert.Nil(t, dashboard.Settings)
	assert.Empty(t, dashboard.CFDs)
	assert.False(t, dashboard.ComputedCFS.Valid)
	assert.Nil(t, dashboard.ComputedDGES)
}

func TestDashboardWeightedAndSimpleCFS(t *testing.T) {
	cases := []struct {
		name    string
		cohort  int
		cfs     string
		dges    int
		formula string
	}{
		{name: "weighted cohort", cohort: 2025, cfs: "15", dges: 150, formula: models.FormulaWeightedMean},
		{name: "simple cohort", cohort: 2024, cfs: "14", dges: 140, formula: models.FormulaSimpleMean},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			db := newMemGradebook()
			seedHistory(db, models.EducationSecundario, intPtr(tc.cohort),
				subjectHistorySeed{subjectID: "por", grades: []int{16, 16, 16}, affectsCFS: true},
				subjectHistorySeed{subjectID: "fil", grades: []int{12}, affectsCFS: true},
				subjectHistorySeed{subjectID: "edf", grades: []int{20, 20, 20}, affectsCFS: false},
			)
			svc := newCFSForTest(db)

			dashboard, err := svc.Dashboard(context.Background(), testStudent)
			require.NoError(t, err)
			require.Len(t, dashboard.CFDs, 3)

			por := cfdFor(t, dashboard, "por")
			assert.Equal(t, 3, por.DurationYears)
			assert.Equal(t, 16, por.CFDGrade)
			assert.Len(t, por.AnnualGrades, 3)
			assert.Equal(t, 1, cfdFor(t, dashboard, "fil").DurationYears)

			require.True(t, dashboard.ComputedCFS.Valid)
			assert.True(t, dashboard.ComputedCFS.Decimal.Equal(dec(tc.cfs)), "cfs %s", dashboard.ComputedCFS.Decimal)
			require.NotNil(t, dashboard.ComputedDGES)
			assert.Equal(t, tc.dges, *dashboard.ComputedDGES)

			snapshot, err := svc.CreateSnapshot(context.Background(), testStudent, dto.CreateSnapshotRequest{AcademicYear: "2024-2025"})
			require.NoError(t, err)
			assert.Equal(t, tc.formula, snapshot.FormulaUsed)
			assert.Equal(t, tc.cohort, snapshot.GraduationCohortYear)
			assert.Len(t, snapshot.CFDSnapshot.Subjects, 3)
		})
	}
}

func TestLegacyTriennialExamBlend(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2022),
		subjectHistorySeed{subjectID: "mat", grades: []int{14, 14, 14}, affectsCFS: true, hasNationalExam: true, examCandidate: true},
	)
	svc := newCFSForTest(db)
	ctx := context.Background()

	dashboard, err := svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	mat := cfdFor(t, dashboard, "mat")
	assert.Equal(t, 14, mat.CFDGrade)
	assert.False(t, mat.ExamWeight.Valid)

	cfd, err := svc.UpdateExamGrade(ctx, testStudent, mat.ID, dto.ExamGradeRequest{ExamGradeRaw: intPtr(160)})
	require.NoError(t, err)
	assert.Equal(t, 160, *cfd.ExamGradeRaw)
	assert.Equal(t, 16, *cfd.ExamGrade)
	assert.True(t, cfd.ExamWeight.Decimal.Equal(dec("30")))
	assert.True(t, cfd.CFDRaw.Equal(dec("14.6")), "raw %s", cfd.CFDRaw)
	assert.Equal(t, 15, cfd.CFDGrade)
}

func TestFlatExamWeightForRecentCohorts(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2026),
		subjectHistorySeed{subjectID: "mat", grades: []int{14, 14, 14}, affectsCFS: true, hasNationalExam: true, examCandidate: true},
	)
	svc := newCFSForTest(db)
	ctx := context.Background()

	dashboard, err := svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	cfd, err := svc.UpdateExamGrade(ctx, testStudent, cfdFor(t, dashboard, "mat").ID, dto.ExamGradeRequest{ExamGradeRaw: intPtr(160)})
	require.NoError(t, err)
	assert.True(t, cfd.ExamWeight.Decimal.Equal(dec("25")))
	assert.True(t, cfd.CFDRaw.Equal(dec("14.5")), "raw %s", cfd.CFDRaw)
	assert.Equal(t, 15, cfd.CFDGrade)
}

func TestUpdateExamGradeRejectsOutOfRange(t *testing.T) {
	svc := newCFSForTest(newMemGradebook())
	_, err := svc.UpdateExamGrade(context.Background(), testStudent, "cfd-1", dto.ExamGradeRequest{ExamGradeRaw: intPtr(201)})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestBasicoExamBlend(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationBasico3, nil,
		subjectHistorySeed{subjectID: "mat", grades: []int{3, 3, 3}, affectsCFS: true, hasNationalExam: true, examCandidate: true},
	)
	svc := newCFSForTest(db)
	ctx := context.Background()

	dashboard, err := svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)

	cfd, err := svc.UpdateBasicoExamGrade(ctx, testStudent, cfdFor(t, dashboard, "mat").ID, dto.BasicoExamGradeRequest{ExamPercentage: intPtr(75)})
	require.NoError(t, err)
	assert.Equal(t, 75, *cfd.ExamGradeRaw)
	assert.Equal(t, 4, *cfd.ExamGrade)
	assert.True(t, cfd.CFDRaw.Equal(dec("3.3")), "raw %s", cfd.CFDRaw)
	assert.Equal(t, 3, cfd.CFDGrade)

	dashboard, err = svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	assert.Equal(t, 3, cfdFor(t, dashboard, "mat").CFDGrade)
	assert.Equal(t, 4, *cfdFor(t, dashboard, "mat").ExamGrade)
}

func TestSnapshotRequiresCFDs(t *testing.T) {
	svc := newCFSForTest(newMemGradebook())
	_, err := svc.CreateSnapshot(context.Background(), testStudent, dto.CreateSnapshotRequest{AcademicYear: "2024-2025"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2026))
	svc = newCFSForTest(db)
	_, err = svc.CreateSnapshot(context.Background(), testStudent, dto.CreateSnapshotRequest{AcademicYear: "2024-2025"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrState.Code))
	assert.Empty(t, db.snapshots)
}

func TestFinalizedCFDsAreImmutable(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2026),
		subjectHistorySeed{subjectID: "mat", grades: []int{14, 14, 14}, affectsCFS: true, hasNationalExam: true, examCandidate: true},
	)
	svc := newCFSForTest(db)
	ctx := context.Background()

	snapshot, err := svc.CreateSnapshot(ctx, testStudent, dto.CreateSnapshotRequest{AcademicYear: "2024-2025"})
	require.NoError(t, err)
	assert.True(t, snapshot.IsFinalized)
	assert.True(t, snapshot.CFSValue.Equal(dec("14")))
	assert.Equal(t, 140, snapshot.DGESValue)

	dashboard, err := svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	mat := cfdFor(t, dashboard, "mat")
	assert.True(t, mat.IsFinalized)
	require.NotNil(t, dashboard.Snapshot)
	assert.Equal(t, snapshot.ID, dashboard.Snapshot.ID)

	_, err = svc.UpdateExamGrade(ctx, testStudent, mat.ID, dto.ExamGradeRequest{ExamGradeRaw: intPtr(200)})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFinalized.Code))
	_, err = svc.UpdateBasicoExamGrade(ctx, testStudent, mat.ID, dto.BasicoExamGradeRequest{ExamPercentage: intPtr(90)})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFinalized.Code))

	for id, annual := range db.annuals {
		annual.AnnualGrade = 20
		db.annuals[id] = annual
	}
	dashboard, err = svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	assert.Equal(t, 14, cfdFor(t, dashboard, "mat").CFDGrade)

	latest, err := svc.LatestSnapshot(ctx, testStudent)
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID, latest.ID)
}

func TestNewTerminalYearOpensFreshCFD(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2026),
		subjectHistorySeed{subjectID: "por", grades: []int{16, 16, 10}, affectsCFS: true},
	)
	latest, ok := db.enrollmentFor(testStudent, "por", "2024-2025")
	require.True(t, ok)
	pending := db.enrollments[latest.ID]
	pending.IsActive = false
	db.enrollments[latest.ID] = pending

	svc := newCFSForTest(db)
	ctx := context.Background()

	_, err := svc.CreateSnapshot(ctx, testStudent, dto.CreateSnapshotRequest{AcademicYear: "2023-2024"})
	require.NoError(t, err)
	dashboard, err := svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	closed := cfdFor(t, dashboard, "por")
	assert.Equal(t, "2023-2024", closed.AcademicYear)
	assert.Equal(t, 16, closed.CIFGrade)
	assert.True(t, closed.IsFinalized)

	pending.IsActive = true
	db.enrollments[latest.ID] = pending

	dashboard, err = svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	por := cfdFor(t, dashboard, "por")
	assert.Equal(t, "2024-2025", por.AcademicYear)
	assert.Equal(t, 14, por.CIFGrade)
	assert.Equal(t, 3, por.DurationYears)
	assert.False(t, por.IsFinalized)
	assert.NotEqual(t, closed.ID, por.ID)

	sealed := db.cfds[closed.ID]
	assert.True(t, sealed.IsFinalized)
	assert.Equal(t, 16, sealed.CFDGrade)
	assert.Len(t, db.cfds, 2)
}

func TestSnapshotFinalizesOnlyContributingCFDs(t *testing.T) {
	db := newMemGradebook()
	seedHistory(db, models.EducationSecundario, intPtr(2026),
		subjectHistorySeed{subjectID: "mat", grades: []int{14, 14, 14}, affectsCFS: true},
	)
	db.cfds["cfd-stale"] = models.SubjectCFD{
		ID:           "cfd-stale",
		StudentID:    testStudent,
		SubjectID:    "his",
		AcademicYear: "2022-2023",
		CIFGrade:     12,
		CFDGrade:     12,
	}
	params := db.cfsParams()
	params.Policy = grading.DefaultPolicy()
	params.Metrics = NewMetricsService()
	svc := NewCFSService(params)
	ctx := context.Background()

	snapshot, err := svc.CreateSnapshot(ctx, testStudent, dto.CreateSnapshotRequest{AcademicYear: "2024-2025"})
	require.NoError(t, err)
	require.Len(t, snapshot.CFDSnapshot.Subjects, 1)
	assert.Equal(t, uint64(1), params.Metrics.Snapshot().Recalculations)

	assert.False(t, db.cfds["cfd-stale"].IsFinalized)
	for id, cfd := range db.cfds {
		if cfd.SubjectID == "mat" {
			assert.True(t, cfd.IsFinalized, id)
		}
	}

	_, err = svc.Dashboard(ctx, testStudent)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), params.Metrics.Snapshot().Recalculations, "finalized CFDs are not recomputed")
}

func TestLatestSnapshotNotFound(t *testing.T) {
	svc := newCFSForTest(newMemGradebook())
	_, err := svc.LatestSnapshot(context.Background(), testStudent)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
