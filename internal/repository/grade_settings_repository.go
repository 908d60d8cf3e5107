package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const gradeSettingsColumns = `id, student_id, academic_year, education_level, graduation_cohort_year, regime, course, period_weights, is_locked, created_at, updated_at`

// GradeSettingsRepository persists the per-year calculator configuration.
type GradeSettingsRepository struct {
	db *sqlx.DB
}

// NewGradeSettingsRepository creates a new repository instance.
func NewGradeSettingsRepository(db *sqlx.DB) *GradeSettingsRepository {
	return &GradeSettingsRepository{db: db}
}

// FindByYear returns the settings a student configured for an academic year.
func (r *GradeSettingsRepository) FindByYear(ctx context.Context, studentID, academicYear string) (*models.GradeSettings, error) {
	query := `SELECT ` + gradeSettingsColumns + ` FROM student_grade_settings WHERE student_id = $1 AND academic_year = $2`
	var settings models.GradeSettings
	if err := database.Conn(ctx, r.db).GetContext(ctx, &settings, query, studentID, academicYear); err != nil {
		return nil, err
	}
	return &settings, nil
}

// FindByID returns settings by id without an ownership filter.
func (r *GradeSettingsRepository) FindByID(ctx context.Context, id string) (*models.GradeSettings, error) {
	query := `SELECT ` + gradeSettingsColumns + ` FROM student_grade_settings WHERE id = $1`
	var settings models.GradeSettings
	if err := database.Conn(ctx, r.db).GetContext(ctx, &settings, query, id); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Latest returns the most recent academic year a student configured.
func (r *GradeSettingsRepository) Latest(ctx context.Context, studentID string) (*models.GradeSettings, error) {
	query := `SELECT ` + gradeSettingsColumns + ` FROM student_grade_settings WHERE student_id = $1 ORDER BY academic_year DESC LIMIT 1`
	var settings models.GradeSettings
	if err := database.Conn(ctx, r.db).GetContext(ctx, &settings, query, studentID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Create inserts a settings row.
func (r *GradeSettingsRepository) Create(ctx context.Context, settings *models.GradeSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	const query = `INSERT INTO student_grade_settings (id, student_id, academic_year, education_level, graduation_cohort_year, regime, course, period_weights, is_locked, created_at, updated_at)
        VALUES (:id, :student_id, :academic_year, :education_level, :graduation_cohort_year, :regime, :course, :period_weights, :is_locked, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("insert grade settings: %w", err)
	}
	return nil
}

// Lock marks the settings read-only. It returns sql.ErrNoRows when the row is not the student's.
func (r *GradeSettingsRepository) Lock(ctx context.Context, id, studentID string) error {
	const query = `UPDATE student_grade_settings SET is_locked = TRUE, updated_at = $3 WHERE id = $1 AND student_id = $2`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, studentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("lock grade settings: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
