package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

var maxElementGrade = decimal.NewFromInt(20)

// PeriodGradeService handles pauta entry, overrides and evaluation elements.
// Every mutation runs in one transaction together with its cascade.
type PeriodGradeService struct {
	periods      subjectPeriodStore
	elements     evaluationElementStore
	tx           txRunner
	recalculator *GradeRecalculator
	cache        *CacheService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewPeriodGradeService constructs a PeriodGradeService.
func NewPeriodGradeService(params GradebookParams, recalculator *GradeRecalculator) *PeriodGradeService {
	params = params.withDefaults()
	if recalculator == nil {
		recalculator = NewGradeRecalculator(params)
	}
	return &PeriodGradeService{
		periods:      params.Periods,
		elements:     params.Elements,
		tx:           params.Tx,
		recalculator: recalculator,
		cache:        params.Cache,
		validator:    params.Validator,
		logger:       params.Logger,
	}
}

func (s *PeriodGradeService) ownedPeriod(ctx context.Context, studentID, periodID string) (*models.SubjectPeriod, error) {
	period, err := s.periods.FindOwned(ctx, periodID, studentID)
	if err != nil {
		return nil, lookupError(err, "period")
	}
	if period.IsLocked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "period is locked")
	}
	return period, nil
}

// savePeriod persists a manually edited period and refreshes the annual grade.
func (s *PeriodGradeService) savePeriod(ctx context.Context, studentID string, period *models.SubjectPeriod) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.periods.Update(ctx, period); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
		}
		_, err := s.recalculator.RecalculateAnnual(ctx, studentID, period.EnrollmentID)
		return err
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return nil
}

// UpdatePeriodGrade records a pauta typed in directly. The value becomes both
// the calculated and the pauta grade and any override is dropped.
func (s *PeriodGradeService) UpdatePeriodGrade(ctx context.Context, studentID, periodID string, req dto.UpdatePeriodGradeRequest) (*models.SubjectPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid period grade payload")
	}
	period, err := s.ownedPeriod(ctx, studentID, periodID)
	if err != nil {
		return nil, err
	}

	period.IsOverridden = false
	period.OverrideReason = nil
	if req.PautaGrade != nil {
		grade := *req.PautaGrade
		period.PautaGrade = &grade
		calculated := grade
		period.CalculatedGrade = &calculated
	}
	if req.QualitativeGrade != nil {
		period.QualitativeGrade = req.QualitativeGrade
	}

	if err := s.savePeriod(ctx, studentID, period); err != nil {
		return nil, err
	}
	return period, nil
}

// OverridePeriodGrade replaces the pauta with a justified manual value.
func (s *PeriodGradeService) OverridePeriodGrade(ctx context.Context, studentID, periodID string, req dto.OverridePeriodGradeRequest) (*models.SubjectPeriod, error) {
	req.OverrideReason = strings.TrimSpace(req.OverrideReason)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "override_reason is required when overriding a grade")
	}
	period, err := s.ownedPeriod(ctx, studentID, periodID)
	if err != nil {
		return nil, err
	}

	grade := *req.PautaGrade
	reason := req.OverrideReason
	period.PautaGrade = &grade
	period.IsOverridden = true
	period.OverrideReason = &reason

	if err := s.savePeriod(ctx, studentID, period); err != nil {
		return nil, err
	}
	return period, nil
}

// ClearOverride restores the calculated grade as pauta. A period without a
// calculated grade ends up without pauta, which removes the annual grade.
func (s *PeriodGradeService) ClearOverride(ctx context.Context, studentID, periodID string) (*models.SubjectPeriod, error) {
	period, err := s.ownedPeriod(ctx, studentID, periodID)
	if err != nil {
		return nil, err
	}
	period.IsOverridden = false
	period.OverrideReason = nil
	period.PautaGrade = nil
	if period.CalculatedGrade != nil {
		grade := *period.CalculatedGrade
		period.PautaGrade = &grade
	}

	if err := s.savePeriod(ctx, studentID, period); err != nil {
		return nil, err
	}
	return period, nil
}

// ListElements returns the evaluation elements of a period in creation order.
func (s *PeriodGradeService) ListElements(ctx context.Context, studentID, periodID string) ([]models.EvaluationElement, error) {
	if _, err := s.periods.FindOwned(ctx, periodID, studentID); err != nil {
		return nil, lookupError(err, "period")
	}
	elements, err := s.elements.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation elements")
	}
	if elements == nil {
		elements = []models.EvaluationElement{}
	}
	return elements, nil
}

// ReplaceElements swaps every element of a period and recalculates it. The
// weights must sum to exactly 100.
func (s *PeriodGradeService) ReplaceElements(ctx context.Context, studentID, periodID string, req dto.ReplaceElementsRequest) ([]models.EvaluationElement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid evaluation elements payload")
	}
	weights := make([]decimal.Decimal, 0, len(req.Elements))
	for _, el := range req.Elements {
		if err := checkElementGrade(el.RawGrade); err != nil {
			return nil, err
		}
		weights = append(weights, el.WeightPercentage)
	}
	if err := grading.ValidateWeightSum(weights); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status,
			fmt.Sprintf("element weights must sum to 100, got %s", grading.SumWeights(weights)))
	}

	period, err := s.ownedPeriod(ctx, studentID, periodID)
	if err != nil {
		return nil, err
	}

	elements := make([]models.EvaluationElement, 0, len(req.Elements))
	for _, el := range req.Elements {
		elements = append(elements, models.EvaluationElement{
			PeriodID:         periodID,
			ElementType:      el.ElementType,
			Label:            el.Label,
			Icon:             el.Icon,
			WeightPercentage: el.WeightPercentage,
			RawGrade:         el.RawGrade,
		})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.elements.Replace(ctx, periodID, elements); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace evaluation elements")
		}
		return s.recalculator.RecalculatePeriod(ctx, studentID, period)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return s.ListElements(ctx, studentID, periodID)
}

// UpdateElementGrade sets or clears one element grade and recalculates its period.
func (s *PeriodGradeService) UpdateElementGrade(ctx context.Context, studentID, elementID string, req dto.UpdateElementGradeRequest) (*models.EvaluationElement, error) {
	if err := checkElementGrade(req.RawGrade); err != nil {
		return nil, err
	}
	element, err := s.elements.FindOwned(ctx, elementID, studentID)
	if err != nil {
		return nil, lookupError(err, "evaluation element")
	}
	period, err := s.ownedPeriod(ctx, studentID, element.PeriodID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.elements.UpdateGrade(ctx, elementID, req.RawGrade); err != nil {
			return lookupError(err, "evaluation element")
		}
		return s.recalculator.RecalculatePeriod(ctx, studentID, period)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)

	element.RawGrade = req.RawGrade
	return element, nil
}

// CopyElements copies the element structure of a period, without grades, to
// the other periods of its enrollment. It returns the number of periods written.
func (s *PeriodGradeService) CopyElements(ctx context.Context, studentID, periodID string) (int, error) {
	source, err := s.periods.FindOwned(ctx, periodID, studentID)
	if err != nil {
		return 0, lookupError(err, "period")
	}
	elements, err := s.elements.ListByPeriod(ctx, periodID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation elements")
	}
	if len(elements) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no elements to copy")
	}
	siblings, err := s.periods.ListByEnrollment(ctx, source.EnrollmentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}

	copied := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range siblings {
			target := &siblings[i]
			if target.ID == source.ID || target.IsLocked {
				continue
			}
			structure := make([]models.EvaluationElement, 0, len(elements))
			for _, el := range elements {
				structure = append(structure, models.EvaluationElement{
					PeriodID:         target.ID,
					ElementType:      el.ElementType,
					Label:            el.Label,
					Icon:             el.Icon,
					WeightPercentage: el.WeightPercentage,
				})
			}
			if err := s.elements.Replace(ctx, target.ID, structure); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy evaluation elements")
			}
			if err := s.recalculator.RecalculatePeriod(ctx, studentID, target); err != nil {
				return err
			}
			copied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateStudentBoards(ctx, studentID)
	return copied, nil
}

func checkElementGrade(grade decimal.NullDecimal) error {
	if !grade.Valid {
		return nil
	}
	if grade.Decimal.IsNegative() || grade.Decimal.GreaterThan(maxElementGrade) {
		return appErrors.Clone(appErrors.ErrValidation, "raw_grade must be between 0 and 20")
	}
	return nil
}
