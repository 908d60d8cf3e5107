package grading

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
)

// CIF is the internal multi-year classification of a subject.
type CIF struct {
	Raw   decimal.Decimal
	Grade int
}

// ComputeCIF averages the annual grades of every year the subject was taken.
func ComputeCIF(annualGrades []int) (CIF, error) {
	if len(annualGrades) == 0 {
		return CIF{}, ErrNoAnnualGrades
	}
	total := decimal.Zero
	for _, g := range annualGrades {
		total = total.Add(decimal.NewFromInt(int64(g)))
	}
	raw := total.Div(decimal.NewFromInt(int64(len(annualGrades))))
	return CIF{Raw: raw, Grade: RoundHalfUp(raw)}, nil
}

// PercentageToLevel converts a básico final exam percentage (0-100) into the 1-5 scale.
func PercentageToLevel(percentage int) int {
	switch {
	case percentage >= 90:
		return 5
	case percentage >= 70:
		return 4
	case percentage >= 50:
		return 3
	case percentage >= 20:
		return 2
	default:
		return 1
	}
}

// BlendExam mixes a CIF with a 0-200 exam score. The exam is scaled to 0-20
// without rounding before it is weighted.
func BlendExam(cifGrade, examGradeRaw int, examWeight decimal.Decimal) (decimal.Decimal, int) {
	ce := decimal.NewFromInt(int64(examGradeRaw)).Div(ten)
	internal := hundred.Sub(examWeight)
	raw := decimal.NewFromInt(int64(cifGrade)).Mul(internal).Add(ce.Mul(examWeight)).Div(hundred)
	return raw, RoundHalfUp(raw)
}

// BlendBasicoExam mixes a CIF with a 1-5 exam level.
func (p Policy) BlendBasicoExam(cifGrade, examLevel int) (decimal.Decimal, int) {
	internal := hundred.Sub(p.BasicoExamWeight)
	raw := decimal.NewFromInt(int64(cifGrade)).Mul(internal).
		Add(decimal.NewFromInt(int64(examLevel)).Mul(p.BasicoExamWeight)).
		Div(hundred)
	return raw, RoundHalfUp(raw)
}

// ExamRoundedGrade converts a 0-200 exam score into the 0-20 grade kept for display.
func ExamRoundedGrade(examGradeRaw int) int {
	return RoundHalfUp(decimal.NewFromInt(int64(examGradeRaw)).Div(ten))
}

// CFDInput gathers everything the CFD formula depends on.
type CFDInput struct {
	EducationLevel  models.EducationLevel
	CohortYear      *int
	DurationYears   int
	CIF             CIF
	HasNationalExam bool
	IsExamCandidate bool
	// ExamGradeRaw is 0-200 for secondary and a 0-100 percentage for básico.
	ExamGradeRaw *int
	// ExamGrade is the rounded legacy value used when no raw score was stored.
	ExamGrade *int
}

// CFDResult is the outcome of ComputeCFD.
type CFDResult struct {
	CIF          CIF
	ExamGrade    *int
	ExamGradeRaw *int
	ExamWeight   decimal.NullDecimal
	Raw          decimal.Decimal
	Grade        int
}

// ComputeCFD applies the formula for the student's level and cohort.
//
// Básico 3º ciclo blends the CIF with the exam level at a fixed weight, only
// for subjects with a national exam. Secondary cohorts from
// FlatExamWeightCohort on use a flat exam weight; older cohorts use the
// biennial or triennial weight. Exam data is ignored for non-candidates.
func (p Policy) ComputeCFD(in CFDInput) CFDResult {
	res := CFDResult{CIF: in.CIF, Raw: decimal.NewFromInt(int64(in.CIF.Grade)), Grade: in.CIF.Grade}
	if !in.IsExamCandidate {
		return res
	}
	res.ExamGrade = in.ExamGrade
	res.ExamGradeRaw = in.ExamGradeRaw

	if in.EducationLevel == models.EducationBasico3 {
		if in.ExamGradeRaw == nil || !in.HasNationalExam {
			return res
		}
		res.ExamWeight = decimal.NewNullDecimal(p.BasicoExamWeight)
		res.Raw, res.Grade = p.BlendBasicoExam(in.CIF.Grade, PercentageToLevel(*in.ExamGradeRaw))
		return res
	}

	examRaw := in.ExamGradeRaw
	if examRaw == nil && in.ExamGrade != nil {
		legacy := *in.ExamGrade * 10
		examRaw = &legacy
		res.ExamGradeRaw = examRaw
	}
	if examRaw == nil {
		return res
	}
	weight := p.SecondaryExamWeight(in.CohortYear, in.DurationYears)
	res.ExamWeight = decimal.NewNullDecimal(weight)
	res.Raw, res.Grade = BlendExam(in.CIF.Grade, *examRaw, weight)
	return res
}
