package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

// FederatedTrainer simulates federated training in process: the train
// partition is dealt across a fixed number of clients, each round every
// client starts from the current global weights and runs local SGD, and the
// server replaces the global weights with the data-size-weighted average of
// the client results. Deterministic given the classifier's initial weights
// and the config.
type FederatedTrainer struct {
	cfg models.TrainerConfig
}

func DefaultTrainerConfig() models.TrainerConfig {
	return models.TrainerConfig{
		Clients:      3,
		Rounds:       5,
		LocalEpochs:  10,
		BatchSize:    32,
		LearningRate: 0.1,
		Seed:         42,
	}
}

func NewFederatedTrainer(cfg models.TrainerConfig) *FederatedTrainer {
	if cfg.Clients <= 0 {
		cfg.Clients = 1
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}
	return &FederatedTrainer{cfg: cfg}
}

func (t *FederatedTrainer) Config() models.TrainerConfig {
	return t.cfg
}

func (t *FederatedTrainer) Train(ctx context.Context, clf ports.Classifier, train []models.Sample) (*models.TrainingStats, error) {
	log := log.With().
		Str("component", "federated_trainer").
		Str("architecture", clf.Architecture().String()).
		Logger()

	if len(train) == 0 {
		return nil, fmt.Errorf("empty train partition")
	}

	clients := t.cfg.Clients
	if clients > len(train) {
		clients = len(train)
	}
	partitions := dealPartitions(train, clients)

	start := time.Now()
	var finalLoss, variance float64

	for round := 1; round <= t.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled at round %d: %w", round, err)
		}

		global := clf.Weights()
		aggregated := make([]float64, len(global))
		losses := make([]float64, 0, clients)
		totalWeight := 0.0
		weightedLoss := 0.0

		for _, partition := range partitions {
			clf.SetWeights(global)
			loss := clf.Fit(partition, t.cfg.LocalEpochs, t.cfg.BatchSize, t.cfg.LearningRate)
			local := clf.Weights()

			weight := float64(len(partition))
			for i, w := range local {
				aggregated[i] += w * weight
			}
			weightedLoss += loss * weight
			totalWeight += weight
			losses = append(losses, loss)
		}

		for i := range aggregated {
			aggregated[i] /= totalWeight
		}
		clf.SetWeights(aggregated)

		finalLoss = weightedLoss / totalWeight
		variance = lossVariance(losses, finalLoss)

		log.Debug().
			Int("round", round).
			Float64("avg_loss", finalLoss).
			Float64("variance", variance).
			Msg("Aggregated federated round")
	}

	stats := &models.TrainingStats{
		Rounds:         t.cfg.Rounds,
		Clients:        clients,
		FinalLoss:      finalLoss,
		Variance:       variance,
		Convergence:    convergence(finalLoss, variance),
		TrainingTimeMS: time.Since(start).Milliseconds(),
	}
	return stats, nil
}

// dealPartitions distributes samples round-robin so every client sees an
// interleaved slice of the train split.
func dealPartitions(train []models.Sample, clients int) [][]models.Sample {
	partitions := make([][]models.Sample, clients)
	for i, s := range train {
		c := i % clients
		partitions[c] = append(partitions[c], s)
	}
	return partitions
}

// lossVariance is the sample variance of per-client losses around the
// weighted mean.
func lossVariance(losses []float64, mean float64) float64 {
	if len(losses) <= 1 {
		return 0
	}
	sum := 0.0
	for _, l := range losses {
		diff := l - mean
		sum += diff * diff
	}
	return sum / float64(len(losses)-1)
}

func convergence(avgLoss, variance float64) float64 {
	if variance == 0 {
		return 1.0
	}
	if avgLoss == 0 {
		return 0
	}
	return math.Max(0, 1.0-variance/avgLoss)
}
