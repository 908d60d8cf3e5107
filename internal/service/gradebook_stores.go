package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

type gradeSettingsStore interface {
	FindByYear(ctx context.Context, studentID, academicYear string) (*models.GradeSettings, error)
	FindByID(ctx context.Context, id string) (*models.GradeSettings, error)
	Latest(ctx context.Context, studentID string) (*models.GradeSettings, error)
	Create(ctx context.Context, settings *models.GradeSettings) error
	Lock(ctx context.Context, id, studentID string) error
}

type subjectEnrollmentStore interface {
	ListByYear(ctx context.Context, studentID, academicYear string) ([]models.SubjectEnrollment, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.SubjectEnrollment, error)
	FindByID(ctx context.Context, id, studentID string) (*models.SubjectEnrollment, error)
	FindBySubjectYear(ctx context.Context, studentID, subjectID, academicYear string) (*models.SubjectEnrollment, error)
	Create(ctx context.Context, enrollment *models.SubjectEnrollment) error
	Update(ctx context.Context, id, studentID string, patch models.EnrollmentPatch) error
}

type subjectPeriodStore interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectPeriod, error)
	ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.SubjectPeriod, error)
	FindOwned(ctx context.Context, id, studentID string) (*models.SubjectPeriod, error)
	FindByID(ctx context.Context, id string) (*models.SubjectPeriod, error)
	CreateEmpty(ctx context.Context, enrollmentID string, count int) error
	Update(ctx context.Context, period *models.SubjectPeriod) error
}

type evaluationElementStore interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.EvaluationElement, error)
	ListByPeriods(ctx context.Context, periodIDs []string) (map[string][]models.EvaluationElement, error)
	FindOwned(ctx context.Context, id, studentID string) (*models.EvaluationElement, error)
	Replace(ctx context.Context, periodID string, elements []models.EvaluationElement) error
	UpdateGrade(ctx context.Context, id string, grade decimal.NullDecimal) error
}

type annualGradeStore interface {
	ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.AnnualSubjectGrade, error)
	ListByYear(ctx context.Context, studentID, academicYear string) ([]models.AnnualGradeView, error)
	Upsert(ctx context.Context, grade *models.AnnualSubjectGrade) error
	DeleteByEnrollment(ctx context.Context, enrollmentID string) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GradebookParams groups the stores shared by the grade services.
type GradebookParams struct {
	Settings    gradeSettingsStore
	Enrollments subjectEnrollmentStore
	Periods     subjectPeriodStore
	Elements    evaluationElementStore
	Annuals     annualGradeStore
	Tx          txRunner
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

func (p GradebookParams) withDefaults() GradebookParams {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// lookupError maps a missing row to NotFound and anything else to an internal error.
func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// weightsError translates grading weight failures into the API taxonomy.
func weightsError(err error) error {
	if errors.Is(err, grading.ErrWeightSum) || errors.Is(err, grading.ErrRegimeWeights) {
		return appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, err.Error())
	}
	return validationError(err, err.Error())
}
