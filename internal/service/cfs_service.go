package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

type cfdStore interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.SubjectCFD, error)
	FindByID(ctx context.Context, id, studentID string) (*models.SubjectCFD, error)
	Upsert(ctx context.Context, cfd *models.SubjectCFD) error
	UpdateExam(ctx context.Context, cfd *models.SubjectCFD) error
	FinalizeByIDs(ctx context.Context, studentID string, ids []string) error
}

type cfsSnapshotStore interface {
	Latest(ctx context.Context, studentID string) (*models.CFSSnapshot, error)
	Upsert(ctx context.Context, snapshot *models.CFSSnapshot) error
}

// CFSServiceParams groups the dependencies of CFSService.
type CFSServiceParams struct {
	Settings    gradeSettingsStore
	Enrollments subjectEnrollmentStore
	Annuals     annualGradeStore
	CFDs        cfdStore
	Snapshots   cfsSnapshotStore
	Tx          txRunner
	Policy      grading.Policy
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// CFSService recomputes CIF, CFD and CFS on read and finalizes snapshots.
type CFSService struct {
	settings    gradeSettingsStore
	enrollments subjectEnrollmentStore
	annuals     annualGradeStore
	cfds        cfdStore
	snapshots   cfsSnapshotStore
	tx          txRunner
	policy      grading.Policy
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCFSService constructs a CFSService.
func NewCFSService(params CFSServiceParams) *CFSService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &CFSService{
		settings:    params.Settings,
		enrollments: params.Enrollments,
		annuals:     params.Annuals,
		cfds:        params.CFDs,
		snapshots:   params.Snapshots,
		tx:          params.Tx,
		policy:      params.Policy,
		metrics:     params.Metrics,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         time.Now,
	}
}

type subjectHistory struct {
	subjectID   string
	enrollments []models.SubjectEnrollment
}

// Dashboard rebuilds every CFD of the student from the annual grades of all
// active enrollments. Finalized CFDs are returned as stored.
func (s *CFSService) Dashboard(ctx context.Context, studentID string) (*models.CFSDashboard, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveDBQuery("cfs_dashboard", time.Since(start))
		}
	}()

	dashboard := &models.CFSDashboard{CFDs: []models.CFDView{}}
	settings, err := s.settings.Latest(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dashboard, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade settings")
	}
	dashboard.Settings = settings

	enrollments, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	histories := groupBySubject(enrollments)

	enrollmentIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		enrollmentIDs = append(enrollmentIDs, e.ID)
	}
	annuals, err := s.annuals.ListByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load annual grades")
	}
	stored, err := s.cfds.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load CFDs")
	}
	existing := make(map[string]models.SubjectCFD, len(stored))
	for _, cfd := range stored {
		existing[cfdKey(cfd.SubjectID, cfd.AcademicYear)] = cfd
	}

	for _, history := range histories {
		view, err := s.buildCFD(ctx, settings, history, annuals, existing)
		if err != nil {
			return nil, err
		}
		if view != nil {
			dashboard.CFDs = append(dashboard.CFDs, *view)
		}
	}

	if len(dashboard.CFDs) > 0 {
		entries := make([]grading.CFSEntry, 0, len(dashboard.CFDs))
		for _, c := range dashboard.CFDs {
			entries = append(entries, grading.CFSEntry{CFDGrade: c.CFDGrade, DurationYears: c.DurationYears, AffectsCFS: c.AffectsCFS})
		}
		result, err := s.policy.ComputeCFS(entries, settings.GraduationCohortYear)
		if err != nil && !errors.Is(err, grading.ErrNoEligibleCFDs) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute CFS")
		}
		if result != nil {
			dashboard.ComputedCFS = decimal.NewNullDecimal(result.Value)
			dges := result.DGES
			dashboard.ComputedDGES = &dges
		}
	}

	snapshot, err := s.snapshots.Latest(ctx, studentID)
	switch {
	case err == nil:
		dashboard.Snapshot = snapshot
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load CFS snapshot")
	}
	return dashboard, nil
}

// buildCFD recomputes and stores the CFD of one subject. Subjects without any
// annual grade yield nil.
func (s *CFSService) buildCFD(ctx context.Context, settings *models.GradeSettings, history subjectHistory, annuals map[string]models.AnnualSubjectGrade, existing map[string]models.SubjectCFD) (*models.CFDView, error) {
	grades := []int{}
	years := []models.YearGrade{}
	for _, e := range history.enrollments {
		annual, ok := annuals[e.ID]
		if !ok {
			continue
		}
		grades = append(grades, annual.AnnualGrade)
		years = append(years, models.YearGrade{YearLevel: e.YearLevel, AcademicYear: e.AcademicYear, AnnualGrade: annual.AnnualGrade})
	}
	cif, err := grading.ComputeCIF(grades)
	if err != nil {
		return nil, nil
	}

	terminal := history.enrollments[len(history.enrollments)-1]
	duration := len(history.enrollments)
	view := &models.CFDView{
		SubjectName:     terminal.SubjectName,
		SubjectSlug:     terminal.SubjectSlug,
		AffectsCFS:      terminal.AffectsCFS,
		HasNationalExam: terminal.HasNationalExam,
		IsExamCandidate: terminal.IsExamCandidate,
		DurationYears:   duration,
		AnnualGrades:    years,
	}

	current, found := existing[cfdKey(history.subjectID, terminal.AcademicYear)]
	if found && current.IsFinalized {
		view.SubjectCFD = current
		return view, nil
	}

	in := grading.CFDInput{
		EducationLevel:  settings.EducationLevel,
		CohortYear:      settings.GraduationCohortYear,
		DurationYears:   duration,
		CIF:             cif,
		HasNationalExam: terminal.HasNationalExam,
		IsExamCandidate: terminal.IsExamCandidate,
	}
	if found {
		in.ExamGradeRaw = current.ExamGradeRaw
		in.ExamGrade = current.ExamGrade
	}
	result := s.policy.ComputeCFD(in)

	cfd := models.SubjectCFD{
		StudentID:    terminal.StudentID,
		SubjectID:    history.subjectID,
		AcademicYear: terminal.AcademicYear,
		CIFRaw:       result.CIF.Raw,
		CIFGrade:     result.CIF.Grade,
		ExamGrade:    result.ExamGrade,
		ExamGradeRaw: result.ExamGradeRaw,
		ExamWeight:   result.ExamWeight,
		CFDRaw:       result.Raw,
		CFDGrade:     result.Grade,
	}
	if found {
		cfd.ID = current.ID
		cfd.CreatedAt = current.CreatedAt
	}
	if err := s.cfds.Upsert(ctx, &cfd); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save CFD")
	}
	s.metrics.RecordRecalculation("cfd")
	view.SubjectCFD = cfd
	return view, nil
}

// cfdKey identifies a CFD by subject and the academic year it was closed in.
func cfdKey(subjectID, academicYear string) string {
	return subjectID + "|" + academicYear
}

// groupBySubject keeps the first-seen subject order; enrollments arrive
// sorted by academic year so the last one of each group is the terminal year.
func groupBySubject(enrollments []models.SubjectEnrollment) []subjectHistory {
	index := map[string]int{}
	histories := []subjectHistory{}
	for _, e := range enrollments {
		i, ok := index[e.SubjectID]
		if !ok {
			i = len(histories)
			index[e.SubjectID] = i
			histories = append(histories, subjectHistory{subjectID: e.SubjectID})
		}
		histories[i].enrollments = append(histories[i].enrollments, e)
	}
	for i := range histories {
		sort.SliceStable(histories[i].enrollments, func(a, b int) bool {
			return histories[i].enrollments[a].AcademicYear < histories[i].enrollments[b].AcademicYear
		})
	}
	return histories
}

func (s *CFSService) unfinalizedCFD(ctx context.Context, studentID, cfdID string) (*models.SubjectCFD, error) {
	cfd, err := s.cfds.FindByID(ctx, cfdID, studentID)
	if err != nil {
		return nil, lookupError(err, "CFD")
	}
	if cfd.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "CFD is already finalized")
	}
	return cfd, nil
}

func (s *CFSService) saveExam(ctx context.Context, cfd *models.SubjectCFD) error {
	if err := s.cfds.UpdateExam(ctx, cfd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrFinalized, "CFD is already finalized")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update CFD exam grade")
	}
	return nil
}

// UpdateExamGrade stores a secondary national exam score (0-200) and returns
// the CFD recomputed with it.
func (s *CFSService) UpdateExamGrade(ctx context.Context, studentID, cfdID string, req dto.ExamGradeRequest) (*models.SubjectCFD, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "exam_grade_raw must be between 0 and 200")
	}
	cfd, err := s.unfinalizedCFD(ctx, studentID, cfdID)
	if err != nil {
		return nil, err
	}

	raw := *req.ExamGradeRaw
	rounded := grading.ExamRoundedGrade(raw)
	cfd.ExamGradeRaw = &raw
	cfd.ExamGrade = &rounded
	if err := s.saveExam(ctx, cfd); err != nil {
		return nil, err
	}

	if _, err := s.Dashboard(ctx, studentID); err != nil {
		return nil, err
	}
	refreshed, err := s.cfds.FindByID(ctx, cfdID, studentID)
	if err != nil {
		return nil, lookupError(err, "CFD")
	}
	return refreshed, nil
}

// UpdateBasicoExamGrade stores a Prova Final percentage and blends its 1-5
// level into the CFD.
func (s *CFSService) UpdateBasicoExamGrade(ctx context.Context, studentID, cfdID string, req dto.BasicoExamGradeRequest) (*models.SubjectCFD, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "exam_percentage must be between 0 and 100")
	}
	cfd, err := s.unfinalizedCFD(ctx, studentID, cfdID)
	if err != nil {
		return nil, err
	}

	percentage := *req.ExamPercentage
	level := grading.PercentageToLevel(percentage)
	cfd.ExamGradeRaw = &percentage
	cfd.ExamGrade = &level
	cfd.ExamWeight = decimal.NewNullDecimal(s.policy.BasicoExamWeight)
	cfd.CFDRaw, cfd.CFDGrade = s.policy.BlendBasicoExam(cfd.CIFGrade, level)
	if err := s.saveExam(ctx, cfd); err != nil {
		return nil, err
	}
	return cfd, nil
}

// CreateSnapshot finalizes the CFS of an academic year. The snapshot and the
// finalization of every contributing CFD are written in one transaction and cannot be undone.
func (s *CFSService) CreateSnapshot(ctx context.Context, studentID string, req dto.CreateSnapshotRequest) (*models.CFSSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid snapshot payload")
	}
	dashboard, err := s.Dashboard(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if dashboard.Settings == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no grade settings found")
	}
	if !dashboard.ComputedCFS.Valid || dashboard.ComputedDGES == nil {
		return nil, appErrors.Clone(appErrors.ErrState, "cannot compute CFS - missing CFDs")
	}

	cohortYear := dashboard.Settings.GraduationCohortYear
	cohort := 0
	if cohortYear != nil {
		cohort = *cohortYear
	}
	formula := s.policy.CFSFormula(cohortYear)

	breakdown := models.SnapshotBreakdown{Subjects: make([]models.SnapshotSubject, 0, len(dashboard.CFDs)), Formula: formula, Cohort: cohort}
	cfdIDs := make([]string, 0, len(dashboard.CFDs))
	for _, c := range dashboard.CFDs {
		cfdIDs = append(cfdIDs, c.ID)
		breakdown.Subjects = append(breakdown.Subjects, models.SnapshotSubject{
			SubjectID:     c.SubjectID,
			Name:          c.SubjectName,
			CFDGrade:      c.CFDGrade,
			DurationYears: c.DurationYears,
			Weight:        c.DurationYears,
			HasExam:       c.ExamGrade != nil,
			ExamGrade:     c.ExamGrade,
			AffectsCFS:    c.AffectsCFS,
		})
	}

	snapshot := &models.CFSSnapshot{
		StudentID:            studentID,
		AcademicYear:         req.AcademicYear,
		GraduationCohortYear: cohort,
		CFSValue:             dashboard.ComputedCFS.Decimal,
		DGESValue:            *dashboard.ComputedDGES,
		FormulaUsed:          formula,
		CFDSnapshot:          breakdown,
		IsFinalized:          true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save CFS snapshot")
		}
		if err := s.cfds.FinalizeByIDs(ctx, studentID, cfdIDs); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize CFDs")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cfs snapshot finalized",
		zap.String("student_id", studentID),
		zap.String("academic_year", req.AcademicYear),
		zap.String("cfs_value", snapshot.CFSValue.String()),
		zap.Int("dges_value", snapshot.DGESValue),
		zap.Int("subjects", len(breakdown.Subjects)))
	return snapshot, nil
}

// LatestSnapshot returns the newest snapshot of the student.
func (s *CFSService) LatestSnapshot(ctx context.Context, studentID string) (*models.CFSSnapshot, error) {
	snapshot, err := s.snapshots.Latest(ctx, studentID)
	if err != nil {
		return nil, lookupError(err, "CFS snapshot")
	}
	return snapshot, nil
}
