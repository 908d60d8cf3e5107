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

const annualColumns = `a.id, a.enrollment_id, a.raw_annual, a.annual_grade, a.is_locked, a.updated_at`

// AnnualGradeRepository persists the CAF of each enrollment.
type AnnualGradeRepository struct {
	db *sqlx.DB
}

// NewAnnualGradeRepository creates a new repository instance.
func NewAnnualGradeRepository(db *sqlx.DB) *AnnualGradeRepository {
	return &AnnualGradeRepository{db: db}
}

// ListByEnrollments maps enrollment ids to their annual grade.
func (r *AnnualGradeRepository) ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.AnnualSubjectGrade, error) {
	result := make(map[string]models.AnnualSubjectGrade, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + annualColumns + ` FROM student_annual_subject_grades a WHERE a.enrollment_id = ANY($1)`
	var grades []models.AnnualSubjectGrade
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &grades, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list annual grades: %w", err)
	}
	for _, g := range grades {
		result[g.EnrollmentID] = g
	}
	return result, nil
}

// ListByYear returns the annual grades of a year with their subject.
func (r *AnnualGradeRepository) ListByYear(ctx context.Context, studentID, academicYear string) ([]models.AnnualGradeView, error) {
	query := `SELECT ` + annualColumns + `, e.subject_id, s.name AS subject_name
        FROM student_annual_subject_grades a
        JOIN student_subject_enrollments e ON e.id = a.enrollment_id
        LEFT JOIN subjects s ON s.id = e.subject_id
        WHERE e.student_id = $1 AND e.academic_year = $2
        ORDER BY e.created_at`
	var grades []models.AnnualGradeView
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &grades, query, studentID, academicYear); err != nil {
		return nil, fmt.Errorf("list annual grades by year: %w", err)
	}
	return grades, nil
}

// Upsert writes the annual grade of an enrollment. A lock, once set, is kept.
func (r *AnnualGradeRepository) Upsert(ctx context.Context, grade *models.AnnualSubjectGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_annual_subject_grades (id, enrollment_id, raw_annual, annual_grade, is_locked, updated_at)
        VALUES (:id, :enrollment_id, :raw_annual, :annual_grade, :is_locked, :updated_at)
        ON CONFLICT (enrollment_id) DO UPDATE SET raw_annual = EXCLUDED.raw_annual, annual_grade = EXCLUDED.annual_grade,
        is_locked = student_annual_subject_grades.is_locked OR EXCLUDED.is_locked, updated_at = EXCLUDED.updated_at`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert annual grade: %w", err)
	}
	return nil
}

// DeleteByEnrollment removes the annual grade of an enrollment if any.
func (r *AnnualGradeRepository) DeleteByEnrollment(ctx context.Context, enrollmentID string) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, "DELETE FROM student_annual_subject_grades WHERE enrollment_id = $1", enrollmentID); err != nil {
		return fmt.Errorf("delete annual grade: %w", err)
	}
	return nil
}
