package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const periodColumns = `p.id, p.enrollment_id, p.period_number, p.raw_calculated, p.calculated_grade, p.pauta_grade, p.is_overridden, p.override_reason, p.qualitative_grade, p.is_locked, p.updated_at`

// PeriodRepository persists the periods of each enrollment.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository creates a new repository instance.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// ListByEnrollment returns the periods of an enrollment ordered by number.
func (r *PeriodRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubjectPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM student_subject_periods p WHERE p.enrollment_id = $1 ORDER BY p.period_number`
	var periods []models.SubjectPeriod
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &periods, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ListByEnrollments groups the periods of several enrollments by enrollment id.
func (r *PeriodRepository) ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.SubjectPeriod, error) {
	result := make(map[string][]models.SubjectPeriod, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + periodColumns + ` FROM student_subject_periods p WHERE p.enrollment_id = ANY($1) ORDER BY p.enrollment_id, p.period_number`
	var periods []models.SubjectPeriod
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &periods, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list periods by enrollments: %w", err)
	}
	for _, p := range periods {
		result[p.EnrollmentID] = append(result[p.EnrollmentID], p)
	}
	return result, nil
}

// FindOwned returns a period when its enrollment belongs to the student.
func (r *PeriodRepository) FindOwned(ctx context.Context, id, studentID string) (*models.SubjectPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM student_subject_periods p
        JOIN student_subject_enrollments e ON e.id = p.enrollment_id
        WHERE p.id = $1 AND e.student_id = $2`
	var period models.SubjectPeriod
	if err := database.Conn(ctx, r.db).GetContext(ctx, &period, query, id, studentID); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindByID returns a period without an ownership filter.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.SubjectPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM student_subject_periods p WHERE p.id = $1`
	var period models.SubjectPeriod
	if err := database.Conn(ctx, r.db).GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// CreateEmpty inserts periods 1..count with no grades for an enrollment.
func (r *PeriodRepository) CreateEmpty(ctx context.Context, enrollmentID string, count int) error {
	const query = `INSERT INTO student_subject_periods (id, enrollment_id, period_number, is_overridden, is_locked, updated_at)
        VALUES (:id, :enrollment_id, :period_number, :is_overridden, :is_locked, :updated_at)`
	now := time.Now().UTC()
	conn := database.Conn(ctx, r.db)
	for n := 1; n <= count; n++ {
		period := models.SubjectPeriod{ID: uuid.NewString(), EnrollmentID: enrollmentID, PeriodNumber: n, UpdatedAt: now}
		if _, err := conn.NamedExecContext(ctx, query, period); err != nil {
			return fmt.Errorf("insert period %d: %w", n, err)
		}
	}
	return nil
}

// Update writes the grade columns of a period.
func (r *PeriodRepository) Update(ctx context.Context, period *models.SubjectPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_subject_periods SET raw_calculated = :raw_calculated, calculated_grade = :calculated_grade, pauta_grade = :pauta_grade,
        is_overridden = :is_overridden, override_reason = :override_reason, qualitative_grade = :qualitative_grade, updated_at = :updated_at
        WHERE id = :id`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}
