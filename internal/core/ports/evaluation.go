package ports

import (
	"context"

	"github.com/google/uuid"

	requestmodels "github.com/curalab/fedbench/internal/api/models"
	"github.com/curalab/fedbench/internal/core/models"
)

// Classifier is an untrained binary classifier produced by the model
// factory. Implementations are cheap to construct; one instance is created
// per (architecture, fold) so no state leaks across folds.
type Classifier interface {
	Architecture() models.Architecture
	// Weights returns the full flattened parameter vector, bias last.
	Weights() []float64
	SetWeights(weights []float64)
	// Fit runs local training on the given samples and returns the final
	// training loss.
	Fit(samples []models.Sample, epochs, batchSize int, learningRate float64) float64
	// Predict returns per-class probabilities [p(negative), p(positive)]
	// for each feature row.
	Predict(features [][]float64) [][]float64
}

// ModelFactory resolves an architecture identifier from the closed set into
// a fresh untrained classifier. Unknown identifiers fail with
// models.ErrUnsupportedModel.
type ModelFactory interface {
	New(arch models.Architecture, inputDim int) (Classifier, error)
}

// Trainer performs one full (possibly federated) training run on a fresh
// classifier and the fold's train partition. The call blocks until training
// completes; the harness imposes no timeout of its own.
type Trainer interface {
	Train(ctx context.Context, clf Classifier, train []models.Sample) (*models.TrainingStats, error)
}

// Splitter produces k stratified folds over n samples with the given labels.
type Splitter interface {
	Split(labels []int, k int) ([]models.Fold, error)
}

type EvaluationRunRepository interface {
	Create(ctx context.Context, run *models.EvaluationRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EvaluationRun, error)
	GetAll(ctx context.Context) ([]*models.EvaluationRun, error)
	Update(ctx context.Context, run *models.EvaluationRun) error
	MarkStale(ctx context.Context, olderThanSeconds int) (int64, error)
}

type FoldResultRepository interface {
	Create(ctx context.Context, result *models.FoldResult) error
	GetByRun(ctx context.Context, runID uuid.UUID) ([]*models.FoldResult, error)
}

type EvaluationService interface {
	CreateRun(ctx context.Context, req *requestmodels.CreateEvaluationRequest) (*models.EvaluationRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*models.EvaluationRun, error)
	ListRuns(ctx context.Context) ([]*models.EvaluationRun, error)
	StartRun(ctx context.Context, runID uuid.UUID) error
	GetFoldResults(ctx context.Context, runID uuid.UUID) ([]*models.FoldResult, error)
}
