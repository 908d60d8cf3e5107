package grading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/config"
)

// Policy holds the cohort thresholds and exam weights of the national grading
// rules. They are configurable because they change with legislation.
type Policy struct {
	// FlatExamWeightCohort is the first graduation cohort whose secondary exams
	// weigh FlatExamWeight regardless of subject duration.
	FlatExamWeightCohort int
	// WeightedCFSCohort is the first cohort whose CFS weighs subjects by duration.
	WeightedCFSCohort int

	FlatExamWeight      decimal.Decimal
	BiennialExamWeight  decimal.Decimal
	TriennialExamWeight decimal.Decimal
	BasicoExamWeight    decimal.Decimal
}

// DefaultPolicy returns the rules in force for current cohorts.
func DefaultPolicy() Policy {
	return Policy{
		FlatExamWeightCohort: 2023,
		WeightedCFSCohort:    2025,
		FlatExamWeight:       decimal.NewFromInt(25),
		BiennialExamWeight:   decimal.NewFromInt(25),
		TriennialExamWeight:  decimal.NewFromInt(30),
		BasicoExamWeight:     decimal.NewFromInt(30),
	}
}

// NewPolicy builds a Policy from configuration. Empty weights keep the defaults.
func NewPolicy(cfg config.GradingConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.FlatExamWeightCohort > 0 {
		p.FlatExamWeightCohort = cfg.FlatExamWeightCohort
	}
	if cfg.WeightedCFSCohort > 0 {
		p.WeightedCFSCohort = cfg.WeightedCFSCohort
	}

	weights := []struct {
		name   string
		raw    string
		target *decimal.Decimal
	}{
		{"flat exam weight", cfg.FlatExamWeight, &p.FlatExamWeight},
		{"biennial exam weight", cfg.BiennialExamWeight, &p.BiennialExamWeight},
		{"triennial exam weight", cfg.TriennialExamWeight, &p.TriennialExamWeight},
		{"basico exam weight", cfg.BasicoExamWeight, &p.BasicoExamWeight},
	}
	for _, w := range weights {
		if w.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(w.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("parse %s: %w", w.name, err)
		}
		if d.IsNegative() || d.GreaterThan(hundred) {
			return Policy{}, fmt.Errorf("%s must be between 0 and 100, got %s", w.name, d)
		}
		*w.target = d
	}
	return p, nil
}

// SecondaryExamWeight picks the exam weight for a secondary subject.
func (p Policy) SecondaryExamWeight(cohortYear *int, durationYears int) decimal.Decimal {
	if cohortYear != nil && *cohortYear >= p.FlatExamWeightCohort {
		return p.FlatExamWeight
	}
	if durationYears == 2 {
		return p.BiennialExamWeight
	}
	return p.TriennialExamWeight
}

// UsesWeightedCFS reports whether the cohort averages CFDs by duration.
func (p Policy) UsesWeightedCFS(cohortYear *int) bool {
	return cohortYear != nil && *cohortYear >= p.WeightedCFSCohort
}

// CFSFormula names the formula applied to the cohort.
func (p Policy) CFSFormula(cohortYear *int) string {
	if p.UsesWeightedCFS(cohortYear) {
		return models.FormulaWeightedMean
	}
	return models.FormulaSimpleMean
}
