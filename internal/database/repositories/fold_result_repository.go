package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

type FoldResultRepository struct {
	db *gorm.DB
}

func NewFoldResultRepository(db *gorm.DB) ports.FoldResultRepository {
	return &FoldResultRepository{
		db: db,
	}
}

func (r *FoldResultRepository) Create(ctx context.Context, result *models.FoldResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *FoldResultRepository) GetByRun(ctx context.Context, runID uuid.UUID) ([]*models.FoldResult, error) {
	var results []*models.FoldResult
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("architecture, fold_number").
		Find(&results).Error
	return results, err
}
