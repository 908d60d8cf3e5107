package grading

import "github.com/shopspring/decimal"

// CFSEntry is one subject CFD as seen by the cumulative index.
type CFSEntry struct {
	CFDGrade      int
	DurationYears int
	AffectsCFS    bool
}

// CFSResult is the cumulative index.
type CFSResult struct {
	Raw     decimal.Decimal
	Value   decimal.Decimal
	DGES    int
	Formula string
}

// ComputeCFS averages the eligible CFDs. Weighted cohorts count each subject
// once per year of duration; older cohorts use a plain mean. The value is
// truncated to one decimal and DGES is that value on the 0-200 scale.
func (p Policy) ComputeCFS(entries []CFSEntry, cohortYear *int) (*CFSResult, error) {
	eligible := make([]CFSEntry, 0, len(entries))
	for _, e := range entries {
		if e.AffectsCFS {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleCFDs
	}

	var raw decimal.Decimal
	if p.UsesWeightedCFS(cohortYear) {
		numerator := decimal.Zero
		denominator := decimal.Zero
		for _, e := range eligible {
			duration := e.DurationYears
			if duration <= 0 {
				duration = 1
			}
			d := decimal.NewFromInt(int64(duration))
			numerator = numerator.Add(decimal.NewFromInt(int64(e.CFDGrade)).Mul(d))
			denominator = denominator.Add(d)
		}
		raw = numerator.Div(denominator)
	} else {
		total := decimal.Zero
		for _, e := range eligible {
			total = total.Add(decimal.NewFromInt(int64(e.CFDGrade)))
		}
		raw = total.Div(decimal.NewFromInt(int64(len(eligible))))
	}

	value := TruncateOneDecimal(raw)
	return &CFSResult{
		Raw:     raw,
		Value:   value,
		DGES:    RoundHalfUp(value.Mul(ten)),
		Formula: p.CFSFormula(cohortYear),
	}, nil
}
