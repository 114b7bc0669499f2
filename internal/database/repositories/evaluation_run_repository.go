package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

type EvaluationRunRepository struct {
	db *gorm.DB
}

func NewEvaluationRunRepository(db *gorm.DB) ports.EvaluationRunRepository {
	return &EvaluationRunRepository{
		db: db,
	}
}

func (r *EvaluationRunRepository) Create(ctx context.Context, run *models.EvaluationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *EvaluationRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EvaluationRun, error) {
	var run models.EvaluationRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *EvaluationRunRepository) GetAll(ctx context.Context) ([]*models.EvaluationRun, error) {
	var runs []*models.EvaluationRun
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&runs).Error
	return runs, err
}

func (r *EvaluationRunRepository) Update(ctx context.Context, run *models.EvaluationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// MarkStale fails every run that has sat in the running state without an
// update for longer than olderThanSeconds and returns how many were swept.
func (r *EvaluationRunRepository) MarkStale(ctx context.Context, olderThanSeconds int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	result := r.db.WithContext(ctx).
		Model(&models.EvaluationRun{}).
		Where("status = ? AND updated_at < ?", models.RunStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":     models.RunStatusFailed,
			"error":      "run timed out",
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
