package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grade-engine-api/internal/models"
	"github.com/noah-isme/grade-engine-api/pkg/database"
)

const snapshotColumns = `id, student_id, academic_year, graduation_cohort_year, cfs_value, dges_value, formula_used, cfd_snapshot, is_finalized, created_at`

// CFSSnapshotRepository persists the CFS snapshots taken at finalization.
type CFSSnapshotRepository struct {
	db *sqlx.DB
}

// NewCFSSnapshotRepository creates a new repository instance.
func NewCFSSnapshotRepository(db *sqlx.DB) *CFSSnapshotRepository {
	return &CFSSnapshotRepository{db: db}
}

// Latest returns the newest snapshot of a student.
func (r *CFSSnapshotRepository) Latest(ctx context.Context, studentID string) (*models.CFSSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM student_cfs_snapshot WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`
	var snapshot models.CFSSnapshot
	if err := database.Conn(ctx, r.db).GetContext(ctx, &snapshot, query, studentID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Upsert stores the snapshot of (student, academic year), replacing an earlier one.
func (r *CFSSnapshotRepository) Upsert(ctx context.Context, snapshot *models.CFSSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	snapshot.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO student_cfs_snapshot (id, student_id, academic_year, graduation_cohort_year, cfs_value, dges_value, formula_used, cfd_snapshot, is_finalized, created_at)
        VALUES (:id, :student_id, :academic_year, :graduation_cohort_year, :cfs_value, :dges_value, :formula_used, :cfd_snapshot, :is_finalized, :created_at)
        ON CONFLICT (student_id, academic_year) DO UPDATE SET graduation_cohort_year = EXCLUDED.graduation_cohort_year, cfs_value = EXCLUDED.cfs_value,
        dges_value = EXCLUDED.dges_value, formula_used = EXCLUDED.formula_used, cfd_snapshot = EXCLUDED.cfd_snapshot,
        is_finalized = EXCLUDED.is_finalized, created_at = EXCLUDED.created_at`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("upsert cfs snapshot: %w", err)
	}
	return nil
}
