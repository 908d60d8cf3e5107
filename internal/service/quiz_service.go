package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/internal/quiz"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
	"github.com/noah-isme/grade-engine-api/pkg/jobs"
)

// RegradeJobType tags assignment regrade jobs on the worker queue.
const RegradeJobType = "quiz_regrade"

type quizStore interface {
	AssignmentQuestions(ctx context.Context, assignmentID string) ([]models.QuizQuestion, error)
	FindSubmission(ctx context.Context, id, studentID string) (*models.QuizSubmission, error)
	ListSubmitted(ctx context.Context, assignmentID string) ([]models.QuizSubmission, error)
	SaveGrading(ctx context.Context, submission *models.QuizSubmission) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// QuizService auto-grades quiz attempts and regrades assignments in the background.
type QuizService struct {
	store     quizStore
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuizService constructs a QuizService. The queue may be nil until the
// worker pool is built; SetQueue attaches it later.
func NewQuizService(store quizStore, queue jobDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{store: store, queue: queue, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// SetQueue attaches the regrade queue.
func (s *QuizService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// GradeAttempt grades an attempt against inline questions without storing it.
func (s *QuizService) GradeAttempt(ctx context.Context, req dto.GradeAttemptRequest) (*dto.GradeAttemptResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid quiz attempt payload")
	}
	payload, err := quiz.DecodeJSON(req.Attempt)
	if err != nil {
		return nil, validationError(err, "attempt must be valid JSON")
	}
	result, err := quiz.GradeAttempt(req.Questions, payload)
	if err != nil {
		return nil, validationError(err, "invalid question content")
	}
	s.recordOutcome(result, "graded")
	return &dto.GradeAttemptResponse{Graded: result != nil, Result: result}, nil
}

// SubmitAttempt stores a student's answers and auto-grades them. Attempts
// without a gradable question stay in the submitted state.
func (s *QuizService) SubmitAttempt(ctx context.Context, studentID, submissionID string, req dto.SubmitAttemptRequest) (*models.QuizSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	submission, err := s.store.FindSubmission(ctx, submissionID, studentID)
	if err != nil {
		return nil, lookupError(err, "submission")
	}
	if submission.Status == models.SubmissionSubmitted || submission.Status == models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already submitted")
	}
	questions, err := s.loadQuestions(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	submission.Submission = types.JSONText(req.Submission)
	submission.SubmittedAt = &now
	submission.Status = models.SubmissionSubmitted
	result, err := s.applyGrading(questions, submission)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveGrading(ctx, submission); err != nil {
		return nil, lookupError(err, "submission")
	}
	s.recordOutcome(result, "graded")
	return submission, nil
}

// EnqueueRegrade schedules a regrade of every submitted attempt of an assignment.
func (s *QuizService) EnqueueRegrade(ctx context.Context, assignmentID string) (*dto.RegradeResponse, error) {
	if assignmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "regrade queue unavailable")
	}
	job := jobs.Job{ID: uuid.NewString(), Type: RegradeJobType, Payload: assignmentID}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue regrade")
	}
	s.logger.Info("quiz regrade queued", zap.String("assignment_id", assignmentID), zap.String("job_id", job.ID))
	return &dto.RegradeResponse{AssignmentID: assignmentID, JobID: job.ID, Status: "queued"}, nil
}

// HandleRegradeJob is the queue handler for RegradeJobType jobs.
func (s *QuizService) HandleRegradeJob(ctx context.Context, job jobs.Job) error {
	assignmentID, ok := job.Payload.(string)
	if !ok || assignmentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("regrade job %s: missing assignment id", job.ID))
	}
	report, err := s.Regrade(ctx, assignmentID)
	if err != nil {
		return err
	}
	s.logger.Info("quiz regrade finished",
		zap.String("assignment_id", report.AssignmentID),
		zap.Int("regraded", report.Regraded),
		zap.Int("skipped", report.Skipped),
		zap.Int("attempt", job.Attempt))
	return nil
}

// RegradeRetryable reports whether a failed regrade job may succeed on a later
// attempt. Malformed jobs and unknown assignments never will.
func RegradeRetryable(err error) bool {
	return !appErrors.HasCode(err, appErrors.ErrValidation.Code) && !appErrors.HasCode(err, appErrors.ErrNotFound.Code)
}

// Regrade re-scores every submitted attempt of an assignment against the
// current questions. Synthetic ids are deterministic so earlier answers still match.
func (s *QuizService) Regrade(ctx context.Context, assignmentID string) (*models.RegradeReport, error) {
	questions, err := s.loadQuestions(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.store.ListSubmitted(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	report := &models.RegradeReport{AssignmentID: assignmentID}
	for i := range submissions {
		submission := &submissions[i]
		if len(submission.Submission) == 0 {
			report.Skipped++
			continue
		}
		result, err := s.applyGrading(questions, submission)
		if err != nil {
			return nil, err
		}
		if result == nil {
			report.Skipped++
			continue
		}
		if err := s.store.SaveGrading(ctx, submission); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save regraded submission")
		}
		s.recordOutcome(result, "regraded")
		report.Regraded++
	}
	return report, nil
}

func (s *QuizService) loadQuestions(ctx context.Context, assignmentID string) ([]quiz.Question, error) {
	rows, err := s.store.AssignmentQuestions(ctx, assignmentID)
	if err != nil {
		return nil, lookupError(err, "assignment")
	}
	questions := make([]quiz.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, quiz.Question{ID: row.ID, Type: quiz.Type(row.Type), Content: json.RawMessage(row.Content)})
	}
	return questions, nil
}

// applyGrading grades the stored submission payload and writes the outcome
// onto the submission. A nil result leaves grade fields untouched.
func (s *QuizService) applyGrading(questions []quiz.Question, submission *models.QuizSubmission) (*quiz.AttemptResult, error) {
	payload, err := quiz.DecodeJSON(submission.Submission)
	if err != nil {
		return nil, validationError(err, "submission must be valid JSON")
	}
	result, err := quiz.GradeAttempt(questions, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	if result == nil {
		return nil, nil
	}
	grading, err := json.Marshal(result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode grading")
	}
	now := s.now().UTC()
	submission.Grade.Decimal = result.Score
	submission.Grade.Valid = true
	submission.Grading = types.JSONText(grading)
	submission.AutoGraded = true
	submission.Status = models.SubmissionGraded
	submission.GradedAt = &now
	return result, nil
}

func (s *QuizService) recordOutcome(result *quiz.AttemptResult, outcome string) {
	if s.metrics == nil {
		return
	}
	if result == nil {
		outcome = "ungraded"
	}
	s.metrics.RecordQuizGrading(outcome)
}
