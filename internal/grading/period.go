package grading

import "github.com/shopspring/decimal"

// ElementScore is the part of an evaluation element the period formula reads.
type ElementScore struct {
	Weight   decimal.Decimal
	RawGrade decimal.NullDecimal
}

// PeriodResult holds the calculated fields of a period. Both are null when
// nothing has been graded yet.
type PeriodResult struct {
	Raw     decimal.NullDecimal
	Rounded *int
}

// Graded reports whether at least one element carried a grade.
func (r PeriodResult) Graded() bool {
	return r.Raw.Valid
}

// CalculatePeriod computes raw = Σ(grade × weight / 100) over graded elements.
// Ungraded elements keep their share of the 100% but contribute nothing, so a
// partially graded period has a lower reachable maximum.
func CalculatePeriod(elements []ElementScore) PeriodResult {
	raw := decimal.Zero
	graded := 0
	for _, el := range elements {
		if !el.RawGrade.Valid {
			continue
		}
		graded++
		raw = raw.Add(el.RawGrade.Decimal.Mul(el.Weight).Div(hundred))
	}
	if graded == 0 {
		return PeriodResult{}
	}
	rounded := RoundHalfUp(raw)
	return PeriodResult{Raw: decimal.NewNullDecimal(raw), Rounded: &rounded}
}
