package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
)

// PastYearGrade is an enrollment of an earlier year imported with the settings.
type PastYearGrade struct {
	SubjectID    string `json:"subject_id" validate:"required"`
	YearLevel    string `json:"year_level" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	AnnualGrade  *int   `json:"annual_grade" validate:"omitempty,min=0,max=20"`
}

// CreateSettingsRequest configures a year and enrolls its subjects.
type CreateSettingsRequest struct {
	AcademicYear            string                `json:"academic_year" validate:"required"`
	EducationLevel          models.EducationLevel `json:"education_level" validate:"required,oneof=basico_1_ciclo basico_2_ciclo basico_3_ciclo secundario superior"`
	GraduationCohortYear    *int                  `json:"graduation_cohort_year" validate:"omitempty,min=1990,max=2100"`
	Regime                  *models.Regime        `json:"regime" validate:"omitempty,oneof=trimestral semestral"`
	Course                  *string               `json:"course"`
	PeriodWeights           []decimal.Decimal     `json:"period_weights" validate:"required,min=1"`
	SubjectIDs              []string              `json:"subject_ids" validate:"dive,required"`
	YearLevel               string                `json:"year_level" validate:"required"`
	ExamCandidateSubjectIDs []string              `json:"exam_candidate_subject_ids"`
	PastYearGrades          []PastYearGrade       `json:"past_year_grades" validate:"omitempty,dive"`
}

// PastYearSubject is one subject of a past-year setup.
type PastYearSubject struct {
	SubjectID   string `json:"subject_id" validate:"required"`
	AnnualGrade *int   `json:"annual_grade" validate:"omitempty,min=0,max=20"`
}

// SetupPastYearRequest initializes a past year from the latest settings.
type SetupPastYearRequest struct {
	AcademicYear string            `json:"academic_year" validate:"required"`
	YearLevel    string            `json:"year_level" validate:"required"`
	Subjects     []PastYearSubject `json:"subjects" validate:"dive"`
}

// CreateEnrollmentRequest adds a subject mid-year.
type CreateEnrollmentRequest struct {
	SubjectID       string `json:"subject_id" validate:"required"`
	AcademicYear    string `json:"academic_year" validate:"required"`
	YearLevel       string `json:"year_level" validate:"required"`
	IsExamCandidate bool   `json:"is_exam_candidate"`
}

// UpdatePeriodGradeRequest is a direct pauta entry.
type UpdatePeriodGradeRequest struct {
	PautaGrade       *int    `json:"pauta_grade" validate:"omitempty,min=0,max=20"`
	QualitativeGrade *string `json:"qualitative_grade"`
}

// OverridePeriodGradeRequest replaces the calculated grade with a justified pauta.
type OverridePeriodGradeRequest struct {
	PautaGrade     *int   `json:"pauta_grade" validate:"required,min=0,max=20"`
	OverrideReason string `json:"override_reason" validate:"required,min=1"`
}

// ElementInput is one evaluation element of a replace payload.
type ElementInput struct {
	ID               string              `json:"id"`
	ElementType      string              `json:"element_type" validate:"required"`
	Label            string              `json:"label" validate:"required"`
	Icon             *string             `json:"icon"`
	WeightPercentage decimal.Decimal     `json:"weight_percentage"`
	RawGrade         decimal.NullDecimal `json:"raw_grade"`
}

// ReplaceElementsRequest rewrites every element of a period.
type ReplaceElementsRequest struct {
	Elements []ElementInput `json:"elements" validate:"required,min=1,dive"`
}

// UpdateElementGradeRequest sets or clears an element grade.
type UpdateElementGradeRequest struct {
	RawGrade decimal.NullDecimal `json:"raw_grade"`
}

// UpdateAnnualGradeRequest writes a past-year annual grade directly.
type UpdateAnnualGradeRequest struct {
	SubjectID    string `json:"subject_id" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	AnnualGrade  *int   `json:"annual_grade" validate:"required,min=0,max=20"`
}

// ExamGradeRequest is a national exam score on the 0-200 scale.
type ExamGradeRequest struct {
	ExamGradeRaw *int `json:"exam_grade_raw" validate:"required,min=0,max=200"`
}

// BasicoExamGradeRequest is a Prova Final score as a percentage.
type BasicoExamGradeRequest struct {
	ExamPercentage *int `json:"exam_percentage" validate:"required,min=0,max=100"`
}

// CreateSnapshotRequest finalizes the CFS for an academic year.
type CreateSnapshotRequest struct {
	AcademicYear string `json:"academic_year" validate:"required"`
}

// CopyElementsResponse reports how many periods received the copied structure.
type CopyElementsResponse struct {
	CopiedTo int `json:"copied_to"`
}
