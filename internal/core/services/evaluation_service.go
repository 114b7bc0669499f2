package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	requestmodels "github.com/curalab/fedbench/internal/api/models"
	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

// EvaluationDefaults are the server-side fallbacks applied when a run
// request leaves folds, seed, threshold or trainer settings unset.
type EvaluationDefaults struct {
	Folds     int
	Seed      int64
	Threshold float64
	Trainer   models.TrainerConfig
}

func DefaultEvaluationDefaults() EvaluationDefaults {
	return EvaluationDefaults{
		Folds:     5,
		Seed:      42,
		Threshold: DefaultThreshold,
		Trainer:   DefaultTrainerConfig(),
	}
}

// EvaluationDefaultsFromConfig overlays the configured evaluation settings
// on the compiled-in fallbacks; unset config values keep the fallback.
func EvaluationDefaultsFromConfig(cfg config.EvaluationConfig) EvaluationDefaults {
	d := DefaultEvaluationDefaults()
	if cfg.DefaultFolds > 0 {
		d.Folds = cfg.DefaultFolds
	}
	if cfg.DefaultSeed != 0 {
		d.Seed = cfg.DefaultSeed
	}
	if cfg.Threshold > 0 {
		d.Threshold = cfg.Threshold
	}
	if cfg.Clients > 0 {
		d.Trainer.Clients = cfg.Clients
	}
	if cfg.Rounds > 0 {
		d.Trainer.Rounds = cfg.Rounds
	}
	if cfg.LocalEpochs > 0 {
		d.Trainer.LocalEpochs = cfg.LocalEpochs
	}
	if cfg.BatchSize > 0 {
		d.Trainer.BatchSize = cfg.BatchSize
	}
	if cfg.LearningRate > 0 {
		d.Trainer.LearningRate = cfg.LearningRate
	}
	d.Trainer.Seed = d.Seed
	return d
}

// EvaluationService owns the lifecycle of persisted evaluation runs: it
// validates and stores run requests, executes them through the harness and
// records per-fold results and final summaries.
type EvaluationService struct {
	runRepo  ports.EvaluationRunRepository
	foldRepo ports.FoldResultRepository
	datasets *DatasetService
	factory  ports.ModelFactory
	defaults EvaluationDefaults
}

func NewEvaluationService(
	runRepo ports.EvaluationRunRepository,
	foldRepo ports.FoldResultRepository,
	datasets *DatasetService,
	factory ports.ModelFactory,
	defaults EvaluationDefaults,
) *EvaluationService {
	return &EvaluationService{
		runRepo:  runRepo,
		foldRepo: foldRepo,
		datasets: datasets,
		factory:  factory,
		defaults: defaults,
	}
}

func (s *EvaluationService) CreateRun(ctx context.Context, req *requestmodels.CreateEvaluationRequest) (*models.EvaluationRun, error) {
	log := log.With().Str("component", "evaluation_service").Logger()

	if len(req.Models) == 0 {
		return nil, fmt.Errorf("at least one model must be requested")
	}
	archs := make([]models.Architecture, 0, len(req.Models))
	for _, name := range req.Models {
		arch, err := models.ParseArchitecture(name)
		if err != nil {
			return nil, err
		}
		archs = append(archs, arch)
	}

	folds := req.Folds
	if folds == 0 {
		folds = s.defaults.Folds
	}
	if folds < 2 {
		return nil, fmt.Errorf("fold count must be at least 2, got %d", folds)
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.defaults.Threshold
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1), got %v", threshold)
	}

	trainer := s.defaults.Trainer
	if req.Trainer != nil {
		trainer = models.TrainerConfig{
			Clients:      req.Trainer.Clients,
			Rounds:       req.Trainer.Rounds,
			LocalEpochs:  req.Trainer.LocalEpochs,
			BatchSize:    req.Trainer.BatchSize,
			LearningRate: req.Trainer.LearningRate,
			Seed:         req.Trainer.Seed,
		}
		if trainer.Seed == 0 {
			trainer.Seed = s.defaults.Trainer.Seed
		}
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.defaults.Seed
	}

	run := models.NewEvaluationRun(req.Name, req.Description, req.DatasetURI, archs, folds, seed, threshold, trainer)

	if err := s.runRepo.Create(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to create evaluation run")
		return nil, fmt.Errorf("failed to create evaluation run: %w", err)
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Str("dataset", run.DatasetURI).
		Int("models", len(archs)).
		Int("folds", run.Folds).
		Msg("Created evaluation run")

	return run, nil
}

func (s *EvaluationService) GetRun(ctx context.Context, runID uuid.UUID) (*models.EvaluationRun, error) {
	return s.runRepo.GetByID(ctx, runID)
}

func (s *EvaluationService) ListRuns(ctx context.Context) ([]*models.EvaluationRun, error) {
	return s.runRepo.GetAll(ctx)
}

func (s *EvaluationService) GetFoldResults(ctx context.Context, runID uuid.UUID) ([]*models.FoldResult, error) {
	return s.foldRepo.GetByRun(ctx, runID)
}

// StartRun transitions a pending run to running and executes it on a
// background goroutine. The HTTP request returns immediately; progress is
// observable through the run's fold results.
func (s *EvaluationService) StartRun(ctx context.Context, runID uuid.UUID) error {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	if run.Status != models.RunStatusPending {
		return fmt.Errorf("run must be pending to start, is %s", run.Status)
	}

	now := time.Now()
	run.Status = models.RunStatusRunning
	run.StartedAt = &now
	run.UpdatedAt = now

	if err := s.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	go s.execute(context.Background(), run)
	return nil
}

func (s *EvaluationService) execute(ctx context.Context, run *models.EvaluationRun) {
	log := log.With().
		Str("component", "evaluation_service").
		Str("run_id", run.ID.String()).
		Logger()

	dataset, err := s.datasets.Resolve(ctx, run.DatasetURI, run.Seed)
	if err != nil {
		s.failRun(ctx, run, fmt.Errorf("failed to resolve dataset: %w", err))
		return
	}

	run.DatasetSize = dataset.Size()
	run.UpdatedAt = time.Now()
	if err := s.runRepo.Update(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to record dataset size")
	}

	harness := NewHarnessService(
		s.factory,
		NewFederatedTrainer(run.Trainer),
		NewStratifiedSplitter(run.Seed),
		run.Threshold,
	)
	harness.SetFoldObserver(func(outcome FoldOutcome) {
		s.recordFold(ctx, run.ID, outcome)
	})

	summaries, err := harness.Run(ctx, run.Models, dataset, run.Folds)
	if err != nil {
		s.failRun(ctx, run, err)
		return
	}

	sorted := make(models.SummaryList, 0, len(summaries))
	for _, arch := range run.Models {
		if summary, ok := summaries[arch]; ok {
			sorted = append(sorted, *summary)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Architecture < sorted[j].Architecture
	})

	now := time.Now()
	run.Summaries = sorted
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	run.UpdatedAt = now

	if err := s.runRepo.Update(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to persist completed run")
		return
	}

	log.Info().Int("models", len(sorted)).Msg("Evaluation run completed")
}

func (s *EvaluationService) recordFold(ctx context.Context, runID uuid.UUID, outcome FoldOutcome) {
	log := log.With().
		Str("component", "evaluation_service").
		Str("run_id", runID.String()).
		Logger()

	result := models.NewFoldResult(runID, outcome.Architecture, outcome.Fold)
	result.Status = outcome.Status
	result.Metrics = outcome.Metrics
	result.Training = outcome.Training
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	now := time.Now()
	result.CompletedAt = &now

	if err := s.foldRepo.Create(ctx, result); err != nil {
		log.Error().Err(err).
			Str("architecture", outcome.Architecture.String()).
			Int("fold", outcome.Fold).
			Msg("Failed to persist fold result")
	}
}

func (s *EvaluationService) failRun(ctx context.Context, run *models.EvaluationRun, cause error) {
	log := log.With().
		Str("component", "evaluation_service").
		Str("run_id", run.ID.String()).
		Logger()

	now := time.Now()
	run.Status = models.RunStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	run.UpdatedAt = now

	if err := s.runRepo.Update(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to persist failed run")
	}

	log.Error().Err(cause).Msg("Evaluation run failed")
}
