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

const cfdColumns = `id, student_id, subject_id, academic_year, cif_raw, cif_grade, exam_grade, exam_grade_raw, exam_weight, cfd_raw, cfd_grade, is_finalized, created_at, updated_at`

// CFDRepository persists final subject classifications.
type CFDRepository struct {
	db *sqlx.DB
}

// NewCFDRepository creates a new repository instance.
func NewCFDRepository(db *sqlx.DB) *CFDRepository {
	return &CFDRepository{db: db}
}

// ListByStudent returns every CFD of a student.
func (r *CFDRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SubjectCFD, error) {
	query := `SELECT ` + cfdColumns + ` FROM student_subject_cfd WHERE student_id = $1 ORDER BY created_at`
	var cfds []models.SubjectCFD
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &cfds, query, studentID); err != nil {
		return nil, fmt.Errorf("list cfds: %w", err)
	}
	return cfds, nil
}

// FindByID returns a CFD owned by the student.
func (r *CFDRepository) FindByID(ctx context.Context, id, studentID string) (*models.SubjectCFD, error) {
	query := `SELECT ` + cfdColumns + ` FROM student_subject_cfd WHERE id = $1 AND student_id = $2`
	var cfd models.SubjectCFD
	if err := database.Conn(ctx, r.db).GetContext(ctx, &cfd, query, id, studentID); err != nil {
		return nil, err
	}
	return &cfd, nil
}

// Upsert writes the CFD of a (student, subject, terminal academic year). Finalized rows are never touched.
func (r *CFDRepository) Upsert(ctx context.Context, cfd *models.SubjectCFD) error {
	if cfd.ID == "" {
		cfd.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cfd.CreatedAt.IsZero() {
		cfd.CreatedAt = now
	}
	cfd.UpdatedAt = now
	const query = `INSERT INTO student_subject_cfd (id, student_id, subject_id, academic_year, cif_raw, cif_grade, exam_grade, exam_grade_raw, exam_weight, cfd_raw, cfd_grade, is_finalized, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :academic_year, :cif_raw, :cif_grade, :exam_grade, :exam_grade_raw, :exam_weight, :cfd_raw, :cfd_grade, :is_finalized, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id, academic_year) DO UPDATE SET cif_raw = EXCLUDED.cif_raw, cif_grade = EXCLUDED.cif_grade,
        exam_grade = EXCLUDED.exam_grade, exam_grade_raw = EXCLUDED.exam_grade_raw, exam_weight = EXCLUDED.exam_weight,
        cfd_raw = EXCLUDED.cfd_raw, cfd_grade = EXCLUDED.cfd_grade, updated_at = EXCLUDED.updated_at
        WHERE student_subject_cfd.is_finalized = FALSE`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, cfd); err != nil {
		return fmt.Errorf("upsert cfd: %w", err)
	}
	return nil
}

// UpdateExam stores exam data and the recomputed CFD. It returns
// sql.ErrNoRows when the CFD is missing or already finalized.
func (r *CFDRepository) UpdateExam(ctx context.Context, cfd *models.SubjectCFD) error {
	cfd.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_subject_cfd SET exam_grade = :exam_grade, exam_grade_raw = :exam_grade_raw, exam_weight = :exam_weight,
        cfd_raw = :cfd_raw, cfd_grade = :cfd_grade, updated_at = :updated_at
        WHERE id = :id AND student_id = :student_id AND is_finalized = FALSE`
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, cfd)
	if err != nil {
		return fmt.Errorf("update cfd exam: %w", err)
	}
	return requireAffected(res)
}

// FinalizeByIDs marks the listed CFDs of the student as finalized.
func (r *CFDRepository) FinalizeByIDs(ctx context.Context, studentID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE student_subject_cfd SET is_finalized = TRUE, updated_at = $3 WHERE student_id = $1 AND id = ANY($2) AND is_finalized = FALSE`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, studentID, pq.Array(ids), time.Now().UTC()); err != nil {
		return fmt.Errorf("finalize cfds: %w", err)
	}
	return nil
}
