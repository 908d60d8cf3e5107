package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

// GradeRecalculator propagates element and period edits one level at a time:
// elements to the period, the period to the annual grade. CIF, CFD and CFS are
// computed on read by CFSService.
type GradeRecalculator struct {
	settings    gradeSettingsStore
	enrollments subjectEnrollmentStore
	periods     subjectPeriodStore
	elements    evaluationElementStore
	annuals     annualGradeStore
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewGradeRecalculator constructs the cascade from the shared gradebook stores.
func NewGradeRecalculator(params GradebookParams) *GradeRecalculator {
	params = params.withDefaults()
	return &GradeRecalculator{
		settings:    params.Settings,
		enrollments: params.Enrollments,
		periods:     params.Periods,
		elements:    params.Elements,
		annuals:     params.Annuals,
		metrics:     params.Metrics,
		logger:      params.Logger,
	}
}

// RecalculatePeriod recomputes a period from its elements, persists it and
// cascades to the annual grade. With no graded element the calculated values
// are cleared and the pauta is left as is. Overridden pautas are never replaced.
func (r *GradeRecalculator) RecalculatePeriod(ctx context.Context, studentID string, period *models.SubjectPeriod) error {
	elements, err := r.elements.ListByPeriod(ctx, period.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation elements")
	}
	scores := make([]grading.ElementScore, 0, len(elements))
	for _, el := range elements {
		scores = append(scores, grading.ElementScore{Weight: el.WeightPercentage, RawGrade: el.RawGrade})
	}

	result := grading.CalculatePeriod(scores)
	period.RawCalculated = result.Raw
	period.CalculatedGrade = result.Rounded
	if result.Graded() && !period.IsOverridden {
		pauta := *result.Rounded
		period.PautaGrade = &pauta
	}
	if err := r.periods.Update(ctx, period); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	r.metrics.RecordRecalculation("period")

	_, err = r.RecalculateAnnual(ctx, studentID, period.EnrollmentID)
	return err
}

// RecalculateAnnual writes the annual grade when every period has a pauta and
// removes it otherwise. Locked (imported) annual grades are left untouched.
func (r *GradeRecalculator) RecalculateAnnual(ctx context.Context, studentID, enrollmentID string) (*models.AnnualSubjectGrade, error) {
	enrollment, err := r.enrollments.FindByID(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, lookupError(err, "enrollment")
	}
	settings, err := r.settings.FindByID(ctx, enrollment.SettingsID)
	if err != nil {
		return nil, lookupError(err, "grade settings")
	}
	periods, err := r.periods.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	existing, err := r.annuals.ListByEnrollments(ctx, []string{enrollmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load annual grade")
	}
	current, hasCurrent := existing[enrollmentID]
	if hasCurrent && current.IsLocked {
		return &current, nil
	}

	pautas := make([]grading.PeriodPauta, 0, len(periods))
	for _, p := range periods {
		pautas = append(pautas, grading.PeriodPauta{Number: p.PeriodNumber, Pauta: p.PautaGrade})
	}
	result := grading.CalculateAnnual(pautas, settings.PeriodWeights)
	if result == nil {
		if hasCurrent {
			if err := r.annuals.DeleteByEnrollment(ctx, enrollmentID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear annual grade")
			}
			r.logger.Debug("annual grade cleared", zap.String("enrollment_id", enrollmentID))
		}
		return nil, nil
	}

	grade := &models.AnnualSubjectGrade{EnrollmentID: enrollmentID, RawAnnual: result.Raw, AnnualGrade: result.Grade}
	if hasCurrent {
		grade.ID = current.ID
	}
	if err := r.annuals.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save annual grade")
	}
	r.metrics.RecordRecalculation("annual")
	r.logger.Debug("annual grade created",
		zap.String("enrollment_id", enrollmentID),
		zap.String("raw_annual", result.Raw.String()),
		zap.Int("annual_grade", result.Grade))
	return grade, nil
}
