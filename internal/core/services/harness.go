package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

// ErrNoCompletedFolds is returned when every fold of a model's evaluation
// failed, leaving nothing to average.
var ErrNoCompletedFolds = errors.New("no completed folds")

// FoldOutcome is the result of one (architecture, fold) evaluation, handed
// to the fold observer as soon as the fold finishes.
type FoldOutcome struct {
	Architecture models.Architecture
	Fold         int
	Status       models.FoldResultStatus
	Metrics      *models.MetricsRecord
	Training     *models.TrainingStats
	Err          error
}

// HarnessService runs the cross-validated model comparison: every requested
// architecture is trained and scored on the same k stratified folds, and the
// per-fold metrics are reduced to one mean summary per architecture.
//
// Fold failures follow a skip-and-record policy: a failed (architecture,
// fold) is reported through the observer, excluded from the mean and counted
// in the summary's FailedFolds. Only a model with zero completed folds
// aborts the run. Training is never retried.
type HarnessService struct {
	factory   ports.ModelFactory
	trainer   ports.Trainer
	splitter  ports.Splitter
	metrics   *MetricsCalculator
	threshold float64
	onFold    func(FoldOutcome)
}

func NewHarnessService(factory ports.ModelFactory, trainer ports.Trainer, splitter ports.Splitter, threshold float64) *HarnessService {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &HarnessService{
		factory:   factory,
		trainer:   trainer,
		splitter:  splitter,
		metrics:   NewMetricsCalculator(),
		threshold: threshold,
	}
}

// SetFoldObserver registers a callback invoked after each (architecture,
// fold) completes or fails. The callback runs on the harness goroutine.
func (h *HarnessService) SetFoldObserver(fn func(FoldOutcome)) {
	h.onFold = fn
}

func (h *HarnessService) Run(ctx context.Context, archs []models.Architecture, dataset *models.Dataset, k int) (map[models.Architecture]*models.ModelSummary, error) {
	log := log.With().
		Str("component", "evaluation_harness").
		Str("dataset", dataset.Name).
		Int("folds", k).
		Logger()

	if len(archs) == 0 {
		return nil, fmt.Errorf("no model architectures requested")
	}

	// Reject unknown identifiers before any fold is trained.
	for _, arch := range archs {
		if _, err := models.ParseArchitecture(arch.String()); err != nil {
			return nil, err
		}
	}

	// One split shared by every model, so all models are compared on
	// identical partitions.
	folds, err := h.splitter.Split(dataset.Labels(), k)
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}

	summaries := make(map[models.Architecture]*models.ModelSummary, len(archs))

	for _, arch := range archs {
		records := make([]*models.MetricsRecord, 0, len(folds))
		failed := 0

		for _, fold := range folds {
			outcome := h.evaluateFold(ctx, arch, dataset, fold)
			if h.onFold != nil {
				h.onFold(outcome)
			}

			if outcome.Err != nil {
				failed++
				log.Warn().
					Err(outcome.Err).
					Str("architecture", arch.String()).
					Int("fold", fold.Number).
					Msg("Fold evaluation failed, excluding from summary")
				continue
			}

			records = append(records, outcome.Metrics)
			log.Info().
				Str("architecture", arch.String()).
				Int("fold", fold.Number).
				Float64("accuracy", outcome.Metrics.Accuracy).
				Float64("roc_auc", outcome.Metrics.ROCAUC).
				Msg("Fold evaluation completed")
		}

		if len(records) == 0 {
			return nil, fmt.Errorf("%w for model %s", ErrNoCompletedFolds, arch)
		}

		summaries[arch] = summarize(arch, records, len(folds), failed)
		log.Info().
			Str("architecture", arch.String()).
			Float64("mean_accuracy", summaries[arch].Accuracy).
			Int("failed_folds", failed).
			Msg("Model evaluation completed")
	}

	return summaries, nil
}

func (h *HarnessService) evaluateFold(ctx context.Context, arch models.Architecture, dataset *models.Dataset, fold models.Fold) FoldOutcome {
	outcome := FoldOutcome{Architecture: arch, Fold: fold.Number}

	// Fresh instance per (model, fold): no weight leakage across folds.
	clf, err := h.factory.New(arch, dataset.InputDim)
	if err != nil {
		outcome.Status = models.FoldResultStatusFailed
		outcome.Err = fmt.Errorf("failed to construct model: %w", err)
		return outcome
	}

	stats, err := h.trainer.Train(ctx, clf, dataset.Subset(fold.TrainIdx))
	if err != nil {
		outcome.Status = models.FoldResultStatusFailed
		outcome.Err = fmt.Errorf("training failed: %w", err)
		return outcome
	}
	outcome.Training = stats

	testFeatures := make([][]float64, len(fold.TestIdx))
	testLabels := make([]int, len(fold.TestIdx))
	for i, idx := range fold.TestIdx {
		testFeatures[i] = dataset.Samples[idx].Features
		testLabels[i] = dataset.Samples[idx].Label
	}

	record, err := h.metrics.Compute(testLabels, clf.Predict(testFeatures), h.threshold)
	if err != nil {
		outcome.Status = models.FoldResultStatusFailed
		outcome.Err = fmt.Errorf("failed to compute metrics: %w", err)
		return outcome
	}

	outcome.Status = models.FoldResultStatusCompleted
	outcome.Metrics = record
	return outcome
}

// summarize reduces per-fold records to their elementwise arithmetic mean.
func summarize(arch models.Architecture, records []*models.MetricsRecord, totalFolds, failedFolds int) *models.ModelSummary {
	summary := &models.ModelSummary{
		Architecture:   arch,
		Folds:          totalFolds,
		CompletedFolds: len(records),
		FailedFolds:    failedFolds,
	}
	for _, r := range records {
		summary.Accuracy += r.Accuracy
		summary.Sensitivity += r.Sensitivity
		summary.Specificity += r.Specificity
		summary.ROCAUC += r.ROCAUC
		if r.Degenerate {
			summary.DegenerateFolds++
		}
	}
	n := float64(len(records))
	summary.Accuracy /= n
	summary.Sensitivity /= n
	summary.Specificity /= n
	summary.ROCAUC /= n
	return summary
}
