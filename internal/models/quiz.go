package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// SubmissionStatus tracks a student's progress on an assignment.
type SubmissionStatus string

const (
	SubmissionNotStarted SubmissionStatus = "not_started"
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionGraded     SubmissionStatus = "graded"
)

// QuizQuestion is a row of the questions bank. Content is stored verbatim.
type QuizQuestion struct {
	ID        string         `db:"id" json:"id"`
	Type      string         `db:"type" json:"type"`
	Content   types.JSONText `db:"content" json:"content"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// QuizSubmission is one student's attempt at a quiz assignment.
type QuizSubmission struct {
	ID           string              `db:"id" json:"id"`
	AssignmentID string              `db:"assignment_id" json:"assignment_id"`
	StudentID    string              `db:"student_id" json:"student_id"`
	Status       SubmissionStatus    `db:"status" json:"status"`
	Submission   types.JSONText      `db:"submission" json:"submission"`
	Grade        decimal.NullDecimal `db:"grade" json:"grade"`
	Grading      types.JSONText      `db:"grading" json:"grading"`
	AutoGraded   bool                `db:"auto_graded" json:"auto_graded"`
	SubmittedAt  *time.Time          `db:"submitted_at" json:"submitted_at,omitempty"`
	GradedAt     *time.Time          `db:"graded_at" json:"graded_at,omitempty"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// RegradeReport summarises a regrade run over one assignment.
type RegradeReport struct {
	AssignmentID string `json:"assignment_id"`
	Regraded     int    `json:"regraded"`
	Skipped      int    `json:"skipped"`
}
