package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestmodels "github.com/curalab/fedbench/internal/api/models"
	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/internal/core/models"
)

type memRunRepo struct {
	runs map[uuid.UUID]*models.EvaluationRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: map[uuid.UUID]*models.EvaluationRun{}}
}

func (r *memRunRepo) Create(ctx context.Context, run *models.EvaluationRun) error {
	r.runs[run.ID] = run
	return nil
}

func (r *memRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.EvaluationRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

func (r *memRunRepo) GetAll(ctx context.Context) ([]*models.EvaluationRun, error) {
	all := make([]*models.EvaluationRun, 0, len(r.runs))
	for _, run := range r.runs {
		all = append(all, run)
	}
	return all, nil
}

func (r *memRunRepo) Update(ctx context.Context, run *models.EvaluationRun) error {
	r.runs[run.ID] = run
	return nil
}

func (r *memRunRepo) MarkStale(ctx context.Context, olderThanSeconds int) (int64, error) {
	return 0, nil
}

type memFoldRepo struct {
	results []*models.FoldResult
}

func (r *memFoldRepo) Create(ctx context.Context, result *models.FoldResult) error {
	r.results = append(r.results, result)
	return nil
}

func (r *memFoldRepo) GetByRun(ctx context.Context, runID uuid.UUID) ([]*models.FoldResult, error) {
	var matched []*models.FoldResult
	for _, result := range r.results {
		if result.RunID == runID {
			matched = append(matched, result)
		}
	}
	return matched, nil
}

func newTestEvaluationService(defaults EvaluationDefaults) *EvaluationService {
	return NewEvaluationService(
		newMemRunRepo(),
		&memFoldRepo{},
		NewDatasetService(nil),
		NewModelFactory(),
		defaults,
	)
}

func TestEvaluationDefaultsFromConfig(t *testing.T) {
	t.Run("empty config keeps compiled fallbacks", func(t *testing.T) {
		defaults := EvaluationDefaultsFromConfig(config.EvaluationConfig{})
		assert.Equal(t, DefaultEvaluationDefaults(), defaults)
	})

	t.Run("configured values replace fallbacks", func(t *testing.T) {
		defaults := EvaluationDefaultsFromConfig(config.EvaluationConfig{
			DefaultFolds: 10,
			DefaultSeed:  7,
			Threshold:    0.6,
			Rounds:       20,
			LearningRate: 0.05,
		})

		assert.Equal(t, 10, defaults.Folds)
		assert.Equal(t, int64(7), defaults.Seed)
		assert.Equal(t, 0.6, defaults.Threshold)
		assert.Equal(t, 20, defaults.Trainer.Rounds)
		assert.Equal(t, 0.05, defaults.Trainer.LearningRate)
		assert.Equal(t, int64(7), defaults.Trainer.Seed)
		// Unset knobs keep their compiled defaults.
		assert.Equal(t, 3, defaults.Trainer.Clients)
		assert.Equal(t, 10, defaults.Trainer.LocalEpochs)
		assert.Equal(t, 32, defaults.Trainer.BatchSize)
	})
}

func TestCreateRunAppliesConfiguredDefaults(t *testing.T) {
	svc := newTestEvaluationService(EvaluationDefaultsFromConfig(config.EvaluationConfig{
		DefaultFolds: 10,
		DefaultSeed:  7,
		Threshold:    0.6,
		Rounds:       20,
	}))

	run, err := svc.CreateRun(context.Background(), &requestmodels.CreateEvaluationRequest{
		Name:       "defaults",
		DatasetURI: "synthetic:cervical",
		Models:     []string{"resnet"},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, run.Folds)
	assert.Equal(t, int64(7), run.Seed)
	assert.Equal(t, 0.6, run.Threshold)
	assert.Equal(t, 20, run.Trainer.Rounds)
	assert.Equal(t, int64(7), run.Trainer.Seed)
}

func TestCreateRunRequestOverridesDefaults(t *testing.T) {
	svc := newTestEvaluationService(EvaluationDefaultsFromConfig(config.EvaluationConfig{
		DefaultFolds: 10,
		DefaultSeed:  7,
		Threshold:    0.6,
		Rounds:       20,
	}))

	run, err := svc.CreateRun(context.Background(), &requestmodels.CreateEvaluationRequest{
		Name:       "explicit",
		DatasetURI: "synthetic:cervical",
		Models:     []string{"resnet", "bfnet"},
		Folds:      3,
		Seed:       99,
		Threshold:  0.4,
		Trainer: &requestmodels.TrainerConfigRequest{
			Clients:      5,
			Rounds:       2,
			LocalEpochs:  4,
			BatchSize:    16,
			LearningRate: 0.01,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, run.Folds)
	assert.Equal(t, int64(99), run.Seed)
	assert.Equal(t, 0.4, run.Threshold)
	assert.Equal(t, 5, run.Trainer.Clients)
	assert.Equal(t, 2, run.Trainer.Rounds)
	// A trainer override without a seed falls back to the configured one.
	assert.Equal(t, int64(7), run.Trainer.Seed)
}

func TestCreateRunValidation(t *testing.T) {
	svc := newTestEvaluationService(DefaultEvaluationDefaults())

	t.Run("unknown model", func(t *testing.T) {
		_, err := svc.CreateRun(context.Background(), &requestmodels.CreateEvaluationRequest{
			Name:       "bad-model",
			DatasetURI: "synthetic:cervical",
			Models:     []string{"vgg"},
			Folds:      5,
		})
		assert.ErrorIs(t, err, models.ErrUnsupportedModel)
	})

	t.Run("no models", func(t *testing.T) {
		_, err := svc.CreateRun(context.Background(), &requestmodels.CreateEvaluationRequest{
			Name:       "no-models",
			DatasetURI: "synthetic:cervical",
			Folds:      5,
		})
		assert.Error(t, err)
	})

	t.Run("out of range threshold", func(t *testing.T) {
		_, err := svc.CreateRun(context.Background(), &requestmodels.CreateEvaluationRequest{
			Name:       "bad-threshold",
			DatasetURI: "synthetic:cervical",
			Models:     []string{"resnet"},
			Folds:      5,
			Threshold:  1.5,
		})
		assert.Error(t, err)
	})
}
