package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const elementColumns = `el.id, el.period_id, el.element_type, el.label, el.icon, el.weight_percentage, el.raw_grade, el.created_at`

// ElementRepository persists the evaluation elements of a period.
type ElementRepository struct {
	db *sqlx.DB
}

// NewElementRepository creates a new repository instance.
func NewElementRepository(db *sqlx.DB) *ElementRepository {
	return &ElementRepository{db: db}
}

// ListByPeriod returns a period's elements in creation order.
func (r *ElementRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.EvaluationElement, error) {
	query := `SELECT ` + elementColumns + ` FROM subject_evaluation_elements el WHERE el.period_id = $1 ORDER BY el.created_at`
	var elements []models.EvaluationElement
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &elements, query, periodID); err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	return elements, nil
}

// ListByPeriods groups the elements of several periods by period id.
func (r *ElementRepository) ListByPeriods(ctx context.Context, periodIDs []string) (map[string][]models.EvaluationElement, error) {
	result := make(map[string][]models.EvaluationElement, len(periodIDs))
	if len(periodIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + elementColumns + ` FROM subject_evaluation_elements el WHERE el.period_id = ANY($1) ORDER BY el.created_at`
	var elements []models.EvaluationElement
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &elements, query, pq.Array(periodIDs)); err != nil {
		return nil, fmt.Errorf("list elements by periods: %w", err)
	}
	for _, el := range elements {
		result[el.PeriodID] = append(result[el.PeriodID], el)
	}
	return result, nil
}

// FindOwned returns an element when its enrollment belongs to the student.
func (r *ElementRepository) FindOwned(ctx context.Context, id, studentID string) (*models.EvaluationElement, error) {
	query := `SELECT ` + elementColumns + ` FROM subject_evaluation_elements el
        JOIN student_subject_periods p ON p.id = el.period_id
        JOIN student_subject_enrollments e ON e.id = p.enrollment_id
        WHERE el.id = $1 AND e.student_id = $2`
	var element models.EvaluationElement
	if err := database.Conn(ctx, r.db).GetContext(ctx, &element, query, id, studentID); err != nil {
		return nil, err
	}
	return &element, nil
}

// Replace deletes the elements of a period and inserts the given ones. Callers
// run it inside a transaction.
func (r *ElementRepository) Replace(ctx context.Context, periodID string, elements []models.EvaluationElement) error {
	conn := database.Conn(ctx, r.db)
	if _, err := conn.ExecContext(ctx, "DELETE FROM subject_evaluation_elements WHERE period_id = $1", periodID); err != nil {
		return fmt.Errorf("clear elements: %w", err)
	}
	const query = `INSERT INTO subject_evaluation_elements (id, period_id, element_type, label, icon, weight_percentage, raw_grade, created_at)
        VALUES (:id, :period_id, :element_type, :label, :icon, :weight_percentage, :raw_grade, :created_at)`
	base := time.Now().UTC()
	for i := range elements {
		if elements[i].ID == "" {
			elements[i].ID = uuid.NewString()
		}
		elements[i].PeriodID = periodID
		// creation order is the display order
		elements[i].CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		if _, err := conn.NamedExecContext(ctx, query, elements[i]); err != nil {
			return fmt.Errorf("insert element: %w", err)
		}
	}
	return nil
}

// UpdateGrade sets the raw grade of an element; an invalid value clears it.
func (r *ElementRepository) UpdateGrade(ctx context.Context, id string, grade decimal.NullDecimal) error {
	const query = `UPDATE subject_evaluation_elements SET raw_grade = $2 WHERE id = $1`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, grade)
	if err != nil {
		return fmt.Errorf("update element grade: %w", err)
	}
	return requireAffected(res)
}
