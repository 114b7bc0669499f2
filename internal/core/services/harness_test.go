package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

// scoreClassifier reads its prediction straight from the first feature, so
// tests control the confusion matrix through the dataset alone.
type scoreClassifier struct {
	arch models.Architecture
}

func (c *scoreClassifier) Architecture() models.Architecture { return c.arch }
func (c *scoreClassifier) Weights() []float64                { return []float64{0} }
func (c *scoreClassifier) SetWeights([]float64)              {}

func (c *scoreClassifier) Fit([]models.Sample, int, int, float64) float64 { return 0 }

func (c *scoreClassifier) Predict(features [][]float64) [][]float64 {
	probs := make([][]float64, len(features))
	for i, row := range features {
		probs[i] = []float64{1 - row[0], row[0]}
	}
	return probs
}

type scoreFactory struct{}

func (scoreFactory) New(arch models.Architecture, inputDim int) (ports.Classifier, error) {
	if _, err := models.ParseArchitecture(arch.String()); err != nil {
		return nil, err
	}
	return &scoreClassifier{arch: arch}, nil
}

// stubTrainer counts Train calls and fails on the requested ones.
type stubTrainer struct {
	calls  int
	failOn map[int]bool
}

func (t *stubTrainer) Train(ctx context.Context, clf ports.Classifier, train []models.Sample) (*models.TrainingStats, error) {
	t.calls++
	if t.failOn[t.calls] {
		return nil, errors.New("simulated training failure")
	}
	return &models.TrainingStats{Rounds: 1, Clients: 1}, nil
}

// separableDataset scores positives at 0.9 and negatives at 0.1 through
// scoreClassifier, so every fold evaluates perfectly.
func separableDataset(negatives, positives int) *models.Dataset {
	samples := make([]models.Sample, 0, negatives+positives)
	for i := 0; i < negatives; i++ {
		samples = append(samples, models.Sample{Features: []float64{0.1}, Label: 0})
	}
	for i := 0; i < positives; i++ {
		samples = append(samples, models.Sample{Features: []float64{0.9}, Label: 1})
	}
	return &models.Dataset{Name: "separable", InputDim: 1, Samples: samples}
}

func TestHarnessRunComputesMeanMetricsPerModel(t *testing.T) {
	trainer := &stubTrainer{}
	harness := NewHarnessService(scoreFactory{}, trainer, NewStratifiedSplitter(42), DefaultThreshold)

	archs := []models.Architecture{models.ArchResNet, models.ArchAlexNet}
	summaries, err := harness.Run(context.Background(), archs, separableDataset(15, 15), 3)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	for _, arch := range archs {
		summary := summaries[arch]
		require.NotNil(t, summary, "missing summary for %s", arch)
		assert.Equal(t, 3, summary.Folds)
		assert.Equal(t, 3, summary.CompletedFolds)
		assert.Equal(t, 0, summary.FailedFolds)
		assert.Equal(t, 0, summary.DegenerateFolds)
		assert.Equal(t, 1.0, summary.Accuracy)
		assert.Equal(t, 1.0, summary.Sensitivity)
		assert.Equal(t, 1.0, summary.Specificity)
		assert.Equal(t, 1.0, summary.ROCAUC)
	}
	assert.Equal(t, 6, trainer.calls)
}

// fixedSplitter returns pre-built folds so tests control exactly which
// samples each test partition scores.
type fixedSplitter struct {
	folds []models.Fold
}

func (s fixedSplitter) Split(labels []int, k int) ([]models.Fold, error) {
	return s.folds, nil
}

func TestHarnessRunAveragesDistinctFoldMetrics(t *testing.T) {
	// Each fold's test partition is two positives and two negatives whose
	// first feature is the score scoreClassifier will emit.
	//   fold 1: pos {0.9, 0.8},  neg {0.1, 0.2} -> acc 1,    sens 1,   spec 1, auc 1
	//   fold 2: pos {0.9, 0.15}, neg {0.1, 0.2} -> acc 0.75, sens 0.5, spec 1, auc 0.75
	//   fold 3: pos {0.9, 0.8},  neg {0.6, 0.7} -> acc 0.5,  sens 1,   spec 0, auc 1
	scores := []float64{0.9, 0.8, 0.1, 0.2, 0.9, 0.15, 0.1, 0.2, 0.9, 0.8, 0.6, 0.7}
	labels := []int{1, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0}

	samples := make([]models.Sample, len(scores))
	for i := range scores {
		samples[i] = models.Sample{Features: []float64{scores[i]}, Label: labels[i]}
	}
	dataset := &models.Dataset{Name: "scripted", InputDim: 1, Samples: samples}

	splitter := fixedSplitter{folds: []models.Fold{
		{Number: 1, TrainIdx: []int{4, 5, 6, 7, 8, 9, 10, 11}, TestIdx: []int{0, 1, 2, 3}},
		{Number: 2, TrainIdx: []int{0, 1, 2, 3, 8, 9, 10, 11}, TestIdx: []int{4, 5, 6, 7}},
		{Number: 3, TrainIdx: []int{0, 1, 2, 3, 4, 5, 6, 7}, TestIdx: []int{8, 9, 10, 11}},
	}}

	harness := NewHarnessService(scoreFactory{}, &stubTrainer{}, splitter, DefaultThreshold)
	summaries, err := harness.Run(context.Background(), []models.Architecture{models.ArchResNet}, dataset, 3)
	require.NoError(t, err)

	summary := summaries[models.ArchResNet]
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.CompletedFolds)
	assert.Equal(t, 0, summary.DegenerateFolds)
	assert.InDelta(t, 0.75, summary.Accuracy, 1e-12)
	assert.InDelta(t, 5.0/6.0, summary.Sensitivity, 1e-12)
	assert.InDelta(t, 2.0/3.0, summary.Specificity, 1e-12)
	assert.InDelta(t, 11.0/12.0, summary.ROCAUC, 1e-12)
}

func TestHarnessRunSkipsFailedFolds(t *testing.T) {
	trainer := &stubTrainer{failOn: map[int]bool{2: true}}
	harness := NewHarnessService(scoreFactory{}, trainer, NewStratifiedSplitter(42), DefaultThreshold)

	summaries, err := harness.Run(context.Background(), []models.Architecture{models.ArchZFNet}, separableDataset(15, 15), 3)
	require.NoError(t, err)

	summary := summaries[models.ArchZFNet]
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Folds)
	assert.Equal(t, 2, summary.CompletedFolds)
	assert.Equal(t, 1, summary.FailedFolds)
	// The failed fold is excluded, not averaged in as zero.
	assert.Equal(t, 1.0, summary.Accuracy)
}

func TestHarnessRunAbortsWhenAllFoldsFail(t *testing.T) {
	trainer := &stubTrainer{failOn: map[int]bool{1: true, 2: true, 3: true}}
	harness := NewHarnessService(scoreFactory{}, trainer, NewStratifiedSplitter(42), DefaultThreshold)

	_, err := harness.Run(context.Background(), []models.Architecture{models.ArchBFNet}, separableDataset(15, 15), 3)
	assert.ErrorIs(t, err, ErrNoCompletedFolds)
}

func TestHarnessRunRejectsUnknownModelBeforeTraining(t *testing.T) {
	trainer := &stubTrainer{}
	harness := NewHarnessService(scoreFactory{}, trainer, NewStratifiedSplitter(42), DefaultThreshold)

	_, err := harness.Run(context.Background(), []models.Architecture{models.ArchResNet, "vgg"}, separableDataset(15, 15), 3)
	assert.ErrorIs(t, err, models.ErrUnsupportedModel)
	assert.Equal(t, 0, trainer.calls, "no fold may train when any requested model is unknown")
}

func TestHarnessRunRejectsEmptyModelList(t *testing.T) {
	harness := NewHarnessService(scoreFactory{}, &stubTrainer{}, NewStratifiedSplitter(42), DefaultThreshold)

	_, err := harness.Run(context.Background(), nil, separableDataset(15, 15), 3)
	assert.Error(t, err)
}

func TestHarnessRunPropagatesSplitErrors(t *testing.T) {
	harness := NewHarnessService(scoreFactory{}, &stubTrainer{}, NewStratifiedSplitter(42), DefaultThreshold)

	singleClass := &models.Dataset{
		Name:     "single-class",
		InputDim: 1,
		Samples: []models.Sample{
			{Features: []float64{0.1}, Label: 0},
			{Features: []float64{0.2}, Label: 0},
			{Features: []float64{0.3}, Label: 0},
		},
	}
	_, err := harness.Run(context.Background(), []models.Architecture{models.ArchResNet}, singleClass, 2)
	assert.ErrorIs(t, err, ErrDegenerateFold)
}

func TestHarnessFoldObserverSeesEveryFold(t *testing.T) {
	trainer := &stubTrainer{failOn: map[int]bool{3: true}}
	harness := NewHarnessService(scoreFactory{}, trainer, NewStratifiedSplitter(42), DefaultThreshold)

	var outcomes []FoldOutcome
	harness.SetFoldObserver(func(o FoldOutcome) {
		outcomes = append(outcomes, o)
	})

	archs := []models.Architecture{models.ArchResNet, models.ArchBionnica}
	_, err := harness.Run(context.Background(), archs, separableDataset(15, 15), 3)
	require.NoError(t, err)

	require.Len(t, outcomes, 6)
	failed := 0
	for _, o := range outcomes {
		if o.Status == models.FoldResultStatusFailed {
			failed++
			assert.Error(t, o.Err)
			assert.Nil(t, o.Metrics)
		} else {
			assert.NoError(t, o.Err)
			require.NotNil(t, o.Metrics)
		}
	}
	assert.Equal(t, 1, failed)
}
