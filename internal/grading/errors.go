package grading

import "errors"

var (
	// ErrWeightSum is returned when a weight set does not add up to exactly 100.
	ErrWeightSum = errors.New("weights must sum to 100")
	// ErrRegimeWeights is returned when the number of period weights does not fit the regime.
	ErrRegimeWeights = errors.New("period weights do not match regime")
	// ErrNoAnnualGrades is returned when a CIF is requested without any annual grade.
	ErrNoAnnualGrades = errors.New("no annual grades")
	// ErrNoEligibleCFDs is returned when no CFD contributes to the CFS.
	ErrNoEligibleCFDs = errors.New("no eligible CFDs")
)
