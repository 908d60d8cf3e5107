package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const enrollmentSelect = `SELECT e.id, e.student_id, e.subject_id, e.academic_year, e.year_level, e.settings_id, e.is_active, e.is_exam_candidate, e.created_at, e.updated_at,
        s.name AS subject_name, s.slug AS subject_slug, s.color AS subject_color, s.icon AS subject_icon,
        COALESCE(s.affects_cfs, TRUE) AS affects_cfs, COALESCE(s.has_national_exam, FALSE) AS has_national_exam
        FROM student_subject_enrollments e
        LEFT JOIN subjects s ON s.id = e.subject_id`

// EnrollmentRepository handles subject enrollments joined with their subject catalogue row.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByYear returns a student's enrollments for one academic year in creation order.
func (r *EnrollmentRepository) ListByYear(ctx context.Context, studentID, academicYear string) ([]models.SubjectEnrollment, error) {
	query := enrollmentSelect + ` WHERE e.student_id = $1 AND e.academic_year = $2 ORDER BY e.created_at`
	var enrollments []models.SubjectEnrollment
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &enrollments, query, studentID, academicYear); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListActiveByStudent returns every active enrollment across years, oldest year first.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.SubjectEnrollment, error) {
	query := enrollmentSelect + ` WHERE e.student_id = $1 AND e.is_active = TRUE ORDER BY e.academic_year, e.created_at`
	var enrollments []models.SubjectEnrollment
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment owned by the student.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id, studentID string) (*models.SubjectEnrollment, error) {
	query := enrollmentSelect + ` WHERE e.id = $1 AND e.student_id = $2`
	var enrollment models.SubjectEnrollment
	if err := database.Conn(ctx, r.db).GetContext(ctx, &enrollment, query, id, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindBySubjectYear returns the enrollment of a subject in an academic year.
func (r *EnrollmentRepository) FindBySubjectYear(ctx context.Context, studentID, subjectID, academicYear string) (*models.SubjectEnrollment, error) {
	query := enrollmentSelect + ` WHERE e.student_id = $1 AND e.subject_id = $2 AND e.academic_year = $3`
	var enrollment models.SubjectEnrollment
	if err := database.Conn(ctx, r.db).GetContext(ctx, &enrollment, query, studentID, subjectID, academicYear); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.SubjectEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO student_subject_enrollments (id, student_id, subject_id, academic_year, year_level, settings_id, is_active, is_exam_candidate, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :academic_year, :year_level, :settings_id, :is_active, :is_exam_candidate, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// Update applies a patch to an enrollment owned by the student.
func (r *EnrollmentRepository) Update(ctx context.Context, id, studentID string, patch models.EnrollmentPatch) error {
	sets := []string{}
	args := []interface{}{}
	if patch.IsActive != nil {
		args = append(args, *patch.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if patch.IsExamCandidate != nil {
		args = append(args, *patch.IsExamCandidate)
		sets = append(sets, fmt.Sprintf("is_exam_candidate = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id, studentID)

	query := fmt.Sprintf("UPDATE student_subject_enrollments SET %s WHERE id = $%d AND student_id = $%d", strings.Join(sets, ", "), len(args)-1, len(args))
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return requireAffected(res)
}
