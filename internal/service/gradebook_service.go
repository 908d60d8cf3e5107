package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/cache"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

const defaultPeriodCount = 3

// GradebookService manages yearly settings, enrollments, the grade board and
// annual grades.
type GradebookService struct {
	settings    gradeSettingsStore
	enrollments subjectEnrollmentStore
	periods     subjectPeriodStore
	elements    evaluationElementStore
	annuals     annualGradeStore
	tx          txRunner
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradebookService constructs a GradebookService.
func NewGradebookService(params GradebookParams) *GradebookService {
	params = params.withDefaults()
	return &GradebookService{
		settings:    params.Settings,
		enrollments: params.Enrollments,
		periods:     params.Periods,
		elements:    params.Elements,
		annuals:     params.Annuals,
		tx:          params.Tx,
		cache:       params.Cache,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// CreateSettings configures an academic year, enrolls its subjects with empty
// periods and imports optional past-year annual grades. It returns the new board.
func (s *GradebookService) CreateSettings(ctx context.Context, studentID string, req dto.CreateSettingsRequest) (*models.GradeBoard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade settings payload")
	}
	if err := grading.ValidatePeriodWeights(req.Regime, req.PeriodWeights); err != nil {
		return nil, weightsError(err)
	}

	if _, err := s.settings.FindByYear(ctx, studentID, req.AcademicYear); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("grade settings already exist for %s", req.AcademicYear))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade settings")
	}

	candidates := make(map[string]struct{}, len(req.ExamCandidateSubjectIDs))
	for _, id := range req.ExamCandidateSubjectIDs {
		candidates[id] = struct{}{}
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		settings := &models.GradeSettings{
			StudentID:            studentID,
			AcademicYear:         req.AcademicYear,
			EducationLevel:       req.EducationLevel,
			GraduationCohortYear: req.GraduationCohortYear,
			Regime:               req.Regime,
			Course:               req.Course,
			PeriodWeights:        models.Weights(req.PeriodWeights),
		}
		if err := s.settings.Create(ctx, settings); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade settings")
		}
		for _, subjectID := range req.SubjectIDs {
			_, candidate := candidates[subjectID]
			if _, err := s.enrollSubject(ctx, settings, subjectID, req.YearLevel, candidate); err != nil {
				return err
			}
		}
		return s.importPastYears(ctx, settings, req.PastYearGrades)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	s.logger.Info("grade settings created", zap.String("student_id", studentID), zap.String("academic_year", req.AcademicYear))
	return s.Board(ctx, studentID, req.AcademicYear)
}

// importPastYears creates locked settings, enrollments and locked annual grades
// for the years listed in grades, using template for the calculator configuration.
func (s *GradebookService) importPastYears(ctx context.Context, template *models.GradeSettings, grades []dto.PastYearGrade) error {
	years := []string{}
	byYear := map[string][]dto.PastYearGrade{}
	for _, g := range grades {
		if _, seen := byYear[g.AcademicYear]; !seen {
			years = append(years, g.AcademicYear)
		}
		byYear[g.AcademicYear] = append(byYear[g.AcademicYear], g)
	}

	for _, year := range years {
		settings, err := s.lockedSettingsFor(ctx, template, year)
		if err != nil {
			return err
		}
		for _, g := range byYear[year] {
			if err := s.importAnnualGrade(ctx, settings, g.SubjectID, g.YearLevel, g.AnnualGrade); err != nil {
				return err
			}
		}
	}
	return nil
}

// lockedSettingsFor returns the settings of year, creating a locked copy of
// template when the student has none.
func (s *GradebookService) lockedSettingsFor(ctx context.Context, template *models.GradeSettings, year string) (*models.GradeSettings, error) {
	existing, err := s.settings.FindByYear(ctx, template.StudentID, year)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade settings")
	}
	settings := &models.GradeSettings{
		StudentID:            template.StudentID,
		AcademicYear:         year,
		EducationLevel:       template.EducationLevel,
		GraduationCohortYear: template.GraduationCohortYear,
		Regime:               template.Regime,
		Course:               template.Course,
		PeriodWeights:        template.PeriodWeights,
		IsLocked:             true,
	}
	if err := s.settings.Create(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create past-year settings")
	}
	return settings, nil
}

func (s *GradebookService) importAnnualGrade(ctx context.Context, settings *models.GradeSettings, subjectID, yearLevel string, annualGrade *int) error {
	enrollment, err := s.enrollments.FindBySubjectYear(ctx, settings.StudentID, subjectID, settings.AcademicYear)
	if errors.Is(err, sql.ErrNoRows) {
		enrollment, err = s.enrollSubject(ctx, settings, subjectID, yearLevel, false)
	}
	if err != nil {
		return lookupError(err, "enrollment")
	}
	if annualGrade == nil {
		return nil
	}
	grade := &models.AnnualSubjectGrade{
		EnrollmentID: enrollment.ID,
		RawAnnual:    decimal.NewFromInt(int64(*annualGrade)),
		AnnualGrade:  *annualGrade,
		IsLocked:     true,
	}
	if err := s.annuals.Upsert(ctx, grade); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import annual grade")
	}
	return nil
}

// enrollSubject creates an enrollment with one empty period per configured weight.
func (s *GradebookService) enrollSubject(ctx context.Context, settings *models.GradeSettings, subjectID, yearLevel string, examCandidate bool) (*models.SubjectEnrollment, error) {
	enrollment := &models.SubjectEnrollment{
		StudentID:       settings.StudentID,
		SubjectID:       subjectID,
		AcademicYear:    settings.AcademicYear,
		YearLevel:       yearLevel,
		SettingsID:      settings.ID,
		IsActive:        true,
		IsExamCandidate: examCandidate,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	count := len(settings.PeriodWeights)
	if count == 0 {
		count = defaultPeriodCount
	}
	if err := s.periods.CreateEmpty(ctx, enrollment.ID, count); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create periods")
	}
	return enrollment, nil
}

// SetupPastYear initializes a historical year from the latest settings and
// returns that year's board.
func (s *GradebookService) SetupPastYear(ctx context.Context, studentID string, req dto.SetupPastYearRequest) (*models.GradeBoard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid past year payload")
	}
	template, err := s.settings.Latest(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no grade settings found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade settings")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		settings, err := s.lockedSettingsFor(ctx, template, req.AcademicYear)
		if err != nil {
			return err
		}
		for _, subject := range req.Subjects {
			if err := s.importAnnualGrade(ctx, settings, subject.SubjectID, req.YearLevel, subject.AnnualGrade); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return s.Board(ctx, studentID, req.AcademicYear)
}

// GetSettings returns the settings of an academic year.
func (s *GradebookService) GetSettings(ctx context.Context, studentID, academicYear string) (*models.GradeSettings, error) {
	settings, err := s.settings.FindByYear(ctx, studentID, academicYear)
	if err != nil {
		return nil, lookupError(err, "grade settings")
	}
	return settings, nil
}

// LockSettings marks the settings of a year read-only.
func (s *GradebookService) LockSettings(ctx context.Context, studentID, settingsID string) (*models.GradeSettings, error) {
	if err := s.settings.Lock(ctx, settingsID, studentID); err != nil {
		return nil, lookupError(err, "grade settings")
	}
	settings, err := s.settings.FindByID(ctx, settingsID)
	if err != nil {
		return nil, lookupError(err, "grade settings")
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return settings, nil
}

// ListEnrollments returns the enrollments of a year with subject details.
func (s *GradebookService) ListEnrollments(ctx context.Context, studentID, academicYear string) ([]models.SubjectEnrollment, error) {
	if academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYear is required")
	}
	enrollments, err := s.enrollments.ListByYear(ctx, studentID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// CreateEnrollment adds a subject to a configured year.
func (s *GradebookService) CreateEnrollment(ctx context.Context, studentID string, req dto.CreateEnrollmentRequest) (*models.SubjectEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	settings, err := s.settings.FindByYear(ctx, studentID, req.AcademicYear)
	if err != nil {
		return nil, lookupError(err, "grade settings")
	}
	if _, err := s.enrollments.FindBySubjectYear(ctx, studentID, req.SubjectID, req.AcademicYear); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject already enrolled for this year")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	var created *models.SubjectEnrollment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		enrollment, err := s.enrollSubject(ctx, settings, req.SubjectID, req.YearLevel, req.IsExamCandidate)
		created = enrollment
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)

	hydrated, err := s.enrollments.FindByID(ctx, created.ID, studentID)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	return hydrated, nil
}

// UpdateEnrollment toggles is_active or is_exam_candidate.
func (s *GradebookService) UpdateEnrollment(ctx context.Context, studentID, enrollmentID string, patch models.EnrollmentPatch) (*models.SubjectEnrollment, error) {
	if patch.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	if err := s.enrollments.Update(ctx, enrollmentID, studentID, patch); err != nil {
		return nil, lookupError(err, "enrollment")
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	return enrollment, nil
}

// Board assembles settings, enrollments, periods with elements and annual
// grades for one year. A year without settings yields an empty board.
func (s *GradebookService) Board(ctx context.Context, studentID, academicYear string) (*models.GradeBoard, error) {
	key := cache.BoardKey(studentID, academicYear)
	var cached models.GradeBoard
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		cached.Cached = true
		return &cached, nil
	}

	board := &models.GradeBoard{Subjects: []models.BoardSubject{}}
	settings, err := s.settings.FindByYear(ctx, studentID, academicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return board, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade settings")
	}
	board.Settings = settings

	enrollments, err := s.enrollments.ListByYear(ctx, studentID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	enrollmentIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		enrollmentIDs = append(enrollmentIDs, e.ID)
	}
	periodsByEnrollment, err := s.periods.ListByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	periodIDs := []string{}
	for _, periods := range periodsByEnrollment {
		for _, p := range periods {
			periodIDs = append(periodIDs, p.ID)
		}
	}
	elementsByPeriod, err := s.elements.ListByPeriods(ctx, periodIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation elements")
	}
	annuals, err := s.annuals.ListByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load annual grades")
	}

	for _, enrollment := range enrollments {
		periods := periodsByEnrollment[enrollment.ID]
		if periods == nil {
			periods = []models.SubjectPeriod{}
		}
		for i := range periods {
			periods[i].Elements = elementsByPeriod[periods[i].ID]
		}
		subject := models.BoardSubject{Enrollment: enrollment, Periods: periods}
		if annual, ok := annuals[enrollment.ID]; ok {
			annual := annual
			subject.AnnualGrade = &annual
		}
		board.Subjects = append(board.Subjects, subject)
	}

	_ = s.cache.Set(ctx, key, board, 0)
	return board, nil
}

// ListAnnualGrades returns the annual grades of a year with their subject.
func (s *GradebookService) ListAnnualGrades(ctx context.Context, studentID, academicYear string) ([]models.AnnualGradeView, error) {
	grades, err := s.annuals.ListByYear(ctx, studentID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list annual grades")
	}
	return grades, nil
}

// UpdateAnnualGrade writes an annual grade directly, bypassing the period
// calculation. It is meant for past years.
func (s *GradebookService) UpdateAnnualGrade(ctx context.Context, studentID string, req dto.UpdateAnnualGradeRequest) (*models.AnnualSubjectGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid annual grade payload")
	}
	enrollment, err := s.enrollments.FindBySubjectYear(ctx, studentID, req.SubjectID, req.AcademicYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no enrollment found for subject in %s", req.AcademicYear))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	existing, err := s.annuals.ListByEnrollments(ctx, []string{enrollment.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load annual grade")
	}

	grade := &models.AnnualSubjectGrade{
		EnrollmentID: enrollment.ID,
		RawAnnual:    decimal.NewFromInt(int64(*req.AnnualGrade)),
		AnnualGrade:  *req.AnnualGrade,
	}
	if current, ok := existing[enrollment.ID]; ok {
		grade.ID = current.ID
		grade.IsLocked = current.IsLocked
	}
	if err := s.annuals.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save annual grade")
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return grade, nil
}
