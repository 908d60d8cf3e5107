package dto

import (
	"encoding/json"

	"github.com/noah-isme/grade-engine-api/internal/quiz"
)

// GradeAttemptRequest grades an attempt against inline questions without persisting it.
type GradeAttemptRequest struct {
	Questions []quiz.Question `json:"questions" validate:"required,min=1,dive"`
	Attempt   json.RawMessage `json:"attempt" validate:"required"`
}

// SubmitAttemptRequest submits an attempt for a student assignment.
type SubmitAttemptRequest struct {
	Submission json.RawMessage `json:"submission" validate:"required"`
}

// RegradeResponse acknowledges a queued regrade.
type RegradeResponse struct {
	AssignmentID string `json:"assignment_id"`
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
}

// GradeAttemptResponse carries the auto-graded result. Graded is false when no
// question had a determinable answer.
type GradeAttemptResponse struct {
	Graded bool                `json:"graded"`
	Result *quiz.AttemptResult `json:"result"`
}
