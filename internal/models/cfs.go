package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CFS formulas recorded on snapshots.
const (
	FormulaWeightedMean = "weighted_mean"
	FormulaSimpleMean   = "simple_mean"
)

// SubjectCFD stores the final classification of a subject across all the years it was taken.
type SubjectCFD struct {
	ID           string              `db:"id" json:"id"`
	StudentID    string              `db:"student_id" json:"student_id"`
	SubjectID    string              `db:"subject_id" json:"subject_id"`
	AcademicYear string              `db:"academic_year" json:"academic_year"`
	CIFRaw       decimal.Decimal     `db:"cif_raw" json:"cif_raw"`
	CIFGrade     int                 `db:"cif_grade" json:"cif_grade"`
	ExamGrade    *int                `db:"exam_grade" json:"exam_grade"`
	ExamGradeRaw *int                `db:"exam_grade_raw" json:"exam_grade_raw"`
	ExamWeight   decimal.NullDecimal `db:"exam_weight" json:"exam_weight"`
	CFDRaw       decimal.Decimal     `db:"cfd_raw" json:"cfd_raw"`
	CFDGrade     int                 `db:"cfd_grade" json:"cfd_grade"`
	IsFinalized  bool                `db:"is_finalized" json:"is_finalized"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// YearGrade is one annual grade contributing to a CIF.
type YearGrade struct {
	YearLevel    string `json:"year_level"`
	AcademicYear string `json:"academic_year"`
	AnnualGrade  int    `json:"annual_grade"`
}

// CFDView is a CFD hydrated with the subject facts the dashboard needs.
type CFDView struct {
	SubjectCFD
	SubjectName     *string     `json:"subject_name,omitempty"`
	SubjectSlug     *string     `json:"subject_slug,omitempty"`
	AffectsCFS      bool        `json:"affects_cfs"`
	HasNationalExam bool        `json:"has_national_exam"`
	IsExamCandidate bool        `json:"is_exam_candidate"`
	DurationYears   int         `json:"duration_years"`
	AnnualGrades    []YearGrade `json:"annual_grades"`
}

// SnapshotSubject is one subject frozen into a CFS snapshot.
type SnapshotSubject struct {
	SubjectID     string  `json:"subject_id"`
	Name          *string `json:"name"`
	CFDGrade      int     `json:"cfd_grade"`
	DurationYears int     `json:"duration_years"`
	Weight        int     `json:"weight"`
	HasExam       bool    `json:"has_exam"`
	ExamGrade     *int    `json:"exam_grade"`
	AffectsCFS    bool    `json:"affects_cfs"`
}

// SnapshotBreakdown is the JSONB audit trail stored with a snapshot.
type SnapshotBreakdown struct {
	Subjects []SnapshotSubject `json:"subjects"`
	Formula  string            `json:"formula"`
	Cohort   int               `json:"cohort"`
}

// Scan implements sql.Scanner.
func (b *SnapshotBreakdown) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = SnapshotBreakdown{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan snapshot breakdown: unsupported type %T", src)
	}
	return json.Unmarshal(raw, b)
}

// Value implements driver.Valuer.
func (b SnapshotBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// CFSSnapshot is the immutable record written when a student finalizes a year.
type CFSSnapshot struct {
	ID                   string            `db:"id" json:"id"`
	StudentID            string            `db:"student_id" json:"student_id"`
	AcademicYear         string            `db:"academic_year" json:"academic_year"`
	GraduationCohortYear int               `db:"graduation_cohort_year" json:"graduation_cohort_year"`
	CFSValue             decimal.Decimal   `db:"cfs_value" json:"cfs_value"`
	DGESValue            int               `db:"dges_value" json:"dges_value"`
	FormulaUsed          string            `db:"formula_used" json:"formula_used"`
	CFDSnapshot          SnapshotBreakdown `db:"cfd_snapshot" json:"cfd_snapshot"`
	IsFinalized          bool              `db:"is_finalized" json:"is_finalized"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
}

// CFSDashboard is the recomputed multi-year view of a student.
type CFSDashboard struct {
	Settings     *GradeSettings      `json:"settings"`
	CFDs         []CFDView           `json:"cfds"`
	Snapshot     *CFSSnapshot        `json:"snapshot"`
	ComputedCFS  decimal.NullDecimal `json:"computed_cfs"`
	ComputedDGES *int                `json:"computed_dges"`
}
