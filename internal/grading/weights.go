package grading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
)

// SumWeights adds the weights exactly.
func SumWeights(weights []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	return total
}

// ValidateWeightSum requires the weights to total exactly 100.
func ValidateWeightSum(weights []decimal.Decimal) error {
	total := SumWeights(weights)
	if !total.Equal(hundred) {
		return fmt.Errorf("%w, got %s", ErrWeightSum, total.String())
	}
	return nil
}

// ExpectedPeriods returns how many periods a regime has, 0 when unconstrained.
func ExpectedPeriods(regime *models.Regime) int {
	if regime == nil {
		return 0
	}
	switch *regime {
	case models.RegimeSemestral:
		return 2
	case models.RegimeTrimestral:
		return 3
	default:
		return 0
	}
}

// ValidatePeriodWeights checks the weight sum and the regime's period count.
func ValidatePeriodWeights(regime *models.Regime, weights []decimal.Decimal) error {
	if err := ValidateWeightSum(weights); err != nil {
		return err
	}
	if expected := ExpectedPeriods(regime); expected > 0 && len(weights) != expected {
		return fmt.Errorf("%w: %s regime requires %d weights, got %d", ErrRegimeWeights, *regime, expected, len(weights))
	}
	return nil
}
