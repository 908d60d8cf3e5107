package grading

import "github.com/shopspring/decimal"

// PeriodPauta is the official grade of a period keyed by its 1-based number.
type PeriodPauta struct {
	Number int
	Pauta  *int
}

// AnnualResult is a computed CAF.
type AnnualResult struct {
	Raw   decimal.Decimal
	Grade int
}

// AnnualComplete reports whether every period has an official grade. An
// enrollment without periods is never complete.
func AnnualComplete(periods []PeriodPauta) bool {
	if len(periods) == 0 {
		return false
	}
	for _, p := range periods {
		if p.Pauta == nil {
			return false
		}
	}
	return true
}

// CalculateAnnual weighs each period's pauta grade by weights[number-1]. It
// returns nil when the periods are incomplete; periods without a matching
// weight are skipped.
func CalculateAnnual(periods []PeriodPauta, weights []decimal.Decimal) *AnnualResult {
	if !AnnualComplete(periods) {
		return nil
	}
	raw := decimal.Zero
	for _, p := range periods {
		idx := p.Number - 1
		if idx < 0 || idx >= len(weights) {
			continue
		}
		raw = raw.Add(decimal.NewFromInt(int64(*p.Pauta)).Mul(weights[idx]).Div(hundred))
	}
	return &AnnualResult{Raw: raw, Grade: RoundHalfUp(raw)}
}
