package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const submissionColumns = `id, assignment_id, student_id, status, submission, grade, grading, auto_graded, submitted_at, graded_at, updated_at`

// QuizRepository reads quiz questions and persists graded submissions.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository creates a new repository instance.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// AssignmentQuestions returns the questions of an assignment's quiz in quiz order.
func (r *QuizRepository) AssignmentQuestions(ctx context.Context, assignmentID string) ([]models.QuizQuestion, error) {
	var ids pq.StringArray
	conn := database.Conn(ctx, r.db)
	if err := conn.GetContext(ctx, &ids, `SELECT question_ids FROM assignments WHERE id = $1`, assignmentID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.QuizQuestion{}, nil
	}

	var rows []models.QuizQuestion
	if err := conn.SelectContext(ctx, &rows, `SELECT id, type, content, updated_at FROM questions WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	byID := make(map[string]models.QuizQuestion, len(rows))
	for _, q := range rows {
		byID[q.ID] = q
	}
	ordered := make([]models.QuizQuestion, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// FindSubmission returns a submission owned by the student.
func (r *QuizRepository) FindSubmission(ctx context.Context, id, studentID string) (*models.QuizSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM student_assignments WHERE id = $1 AND student_id = $2`
	var submission models.QuizSubmission
	if err := database.Conn(ctx, r.db).GetContext(ctx, &submission, query, id, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmitted returns the submitted or graded attempts of an assignment.
func (r *QuizRepository) ListSubmitted(ctx context.Context, assignmentID string) ([]models.QuizSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM student_assignments WHERE assignment_id = $1 AND status IN ($2, $3) ORDER BY submitted_at`
	var submissions []models.QuizSubmission
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &submissions, query, assignmentID, models.SubmissionSubmitted, models.SubmissionGraded); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// SaveGrading writes the submission payload and grading outcome.
func (r *QuizRepository) SaveGrading(ctx context.Context, submission *models.QuizSubmission) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_assignments SET status = :status, submission = :submission, grade = :grade, grading = :grading,
        auto_graded = :auto_graded, submitted_at = :submitted_at, graded_at = :graded_at, updated_at = :updated_at
        WHERE id = :id`
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("save submission grading: %w", err)
	}
	return requireAffected(res)
}
