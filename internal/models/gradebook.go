package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// EducationLevel identifies the stage of schooling a settings year belongs to.
type EducationLevel string

const (
	EducationBasico1    EducationLevel = "basico_1_ciclo"
	EducationBasico2    EducationLevel = "basico_2_ciclo"
	EducationBasico3    EducationLevel = "basico_3_ciclo"
	EducationSecundario EducationLevel = "secundario"
	EducationSuperior   EducationLevel = "superior"
)

// Regime describes how an academic year is split into periods.
type Regime string

const (
	// RegimeTrimestral splits the year in three periods.
	RegimeTrimestral Regime = "trimestral"
	// RegimeSemestral splits the year in two periods.
	RegimeSemestral Regime = "semestral"
)

// Weights is an ordered list of percentages persisted as NUMERIC[].
type Weights []decimal.Decimal

// Scan implements sql.Scanner.
func (w *Weights) Scan(src interface{}) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan weights: %w", err)
	}
	out := make(Weights, 0, len(raw))
	for _, item := range raw {
		d, err := decimal.NewFromString(item)
		if err != nil {
			return fmt.Errorf("parse weight %q: %w", item, err)
		}
		out = append(out, d)
	}
	*w = out
	return nil
}

// Value implements driver.Valuer.
func (w Weights) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(w))
	for i, d := range w {
		raw[i] = d.String()
	}
	return raw.Value()
}

// GradeSettings holds the per-year calculator configuration of a student.
type GradeSettings struct {
	ID                   string         `db:"id" json:"id"`
	StudentID            string         `db:"student_id" json:"student_id"`
	AcademicYear         string         `db:"academic_year" json:"academic_year"`
	EducationLevel       EducationLevel `db:"education_level" json:"education_level"`
	GraduationCohortYear *int           `db:"graduation_cohort_year" json:"graduation_cohort_year,omitempty"`
	Regime               *Regime        `db:"regime" json:"regime,omitempty"`
	Course               *string        `db:"course" json:"course,omitempty"`
	PeriodWeights        Weights        `db:"period_weights" json:"period_weights"`
	IsLocked             bool           `db:"is_locked" json:"is_locked"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectEnrollment ties a student to a subject for one academic year.
type SubjectEnrollment struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	SubjectID       string    `db:"subject_id" json:"subject_id"`
	AcademicYear    string    `db:"academic_year" json:"academic_year"`
	YearLevel       string    `db:"year_level" json:"year_level"`
	SettingsID      string    `db:"settings_id" json:"settings_id"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	IsExamCandidate bool      `db:"is_exam_candidate" json:"is_exam_candidate"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	SubjectName     *string `db:"subject_name" json:"subject_name,omitempty"`
	SubjectSlug     *string `db:"subject_slug" json:"subject_slug,omitempty"`
	SubjectColor    *string `db:"subject_color" json:"subject_color,omitempty"`
	SubjectIcon     *string `db:"subject_icon" json:"subject_icon,omitempty"`
	AffectsCFS      bool    `db:"affects_cfs" json:"affects_cfs"`
	HasNationalExam bool    `db:"has_national_exam" json:"has_national_exam"`
}

// EnrollmentPatch lists the mutable enrollment flags. Nil fields are left untouched.
type EnrollmentPatch struct {
	IsActive        *bool `json:"is_active"`
	IsExamCandidate *bool `json:"is_exam_candidate"`
}

// Empty reports whether the patch changes nothing.
func (p EnrollmentPatch) Empty() bool {
	return p.IsActive == nil && p.IsExamCandidate == nil
}

// SubjectPeriod is one term of an enrollment.
type SubjectPeriod struct {
	ID               string              `db:"id" json:"id"`
	EnrollmentID     string              `db:"enrollment_id" json:"enrollment_id"`
	PeriodNumber     int                 `db:"period_number" json:"period_number"`
	RawCalculated    decimal.NullDecimal `db:"raw_calculated" json:"raw_calculated"`
	CalculatedGrade  *int                `db:"calculated_grade" json:"calculated_grade"`
	PautaGrade       *int                `db:"pauta_grade" json:"pauta_grade"`
	IsOverridden     bool                `db:"is_overridden" json:"is_overridden"`
	OverrideReason   *string             `db:"override_reason" json:"override_reason,omitempty"`
	QualitativeGrade *string             `db:"qualitative_grade" json:"qualitative_grade,omitempty"`
	IsLocked         bool                `db:"is_locked" json:"is_locked"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`

	Elements []EvaluationElement `db:"-" json:"elements,omitempty"`
}

// EvaluationElement is a weighted assessment inside a period (test, project, ...).
type EvaluationElement struct {
	ID               string              `db:"id" json:"id"`
	PeriodID         string              `db:"period_id" json:"period_id"`
	ElementType      string              `db:"element_type" json:"element_type"`
	Label            string              `db:"label" json:"label"`
	Icon             *string             `db:"icon" json:"icon,omitempty"`
	WeightPercentage decimal.Decimal     `db:"weight_percentage" json:"weight_percentage"`
	RawGrade         decimal.NullDecimal `db:"raw_grade" json:"raw_grade"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
}

// AnnualSubjectGrade is the CAF of one enrollment.
type AnnualSubjectGrade struct {
	ID           string          `db:"id" json:"id"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	RawAnnual    decimal.Decimal `db:"raw_annual" json:"raw_annual"`
	AnnualGrade  int             `db:"annual_grade" json:"annual_grade"`
	IsLocked     bool            `db:"is_locked" json:"is_locked"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// AnnualGradeView decorates an annual grade with its subject.
type AnnualGradeView struct {
	AnnualSubjectGrade
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName *string `db:"subject_name" json:"subject_name,omitempty"`
}

// GradeBoard is the per-year board: every subject with its periods and annual grade.
type GradeBoard struct {
	Settings *GradeSettings `json:"settings"`
	Subjects []BoardSubject `json:"subjects"`
	// Cached is set when the board was served from the board cache.
	Cached bool `json:"-"`
}

// BoardSubject is one column of the board.
type BoardSubject struct {
	Enrollment  SubjectEnrollment   `json:"enrollment"`
	Periods     []SubjectPeriod     `json:"periods"`
	AnnualGrade *AnnualSubjectGrade `json:"annual_grade"`
}
