package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curalab/fedbench/internal/core/models"
)

func TestModelFactoryBuildsEverySupportedArchitecture(t *testing.T) {
	factory := NewModelFactory()

	for _, arch := range models.SupportedArchitectures() {
		clf, err := factory.New(arch, 64)
		require.NoError(t, err, "architecture %s", arch)
		assert.Equal(t, arch, clf.Architecture())
	}
}

func TestModelFactoryRejectsUnknownArchitecture(t *testing.T) {
	factory := NewModelFactory()

	_, err := factory.New("vgg", 64)
	assert.ErrorIs(t, err, models.ErrUnsupportedModel)
}

func TestModelFactoryRejectsNonPositiveInputDim(t *testing.T) {
	factory := NewModelFactory()

	_, err := factory.New(models.ArchResNet, 0)
	assert.Error(t, err)
}

func TestModelFactoryInitIsDeterministic(t *testing.T) {
	factory := NewModelFactory()

	first, err := factory.New(models.ArchResNet, 64)
	require.NoError(t, err)
	second, err := factory.New(models.ArchResNet, 64)
	require.NoError(t, err)

	assert.Equal(t, first.Weights(), second.Weights())
}

func TestLinearClassifierWeightsRoundTrip(t *testing.T) {
	factory := NewModelFactory()

	clf, err := factory.New(models.ArchAlexNet, 32)
	require.NoError(t, err)

	flat := clf.Weights()
	for i := range flat {
		flat[i] = float64(i) * 0.01
	}
	clf.SetWeights(flat)
	assert.Equal(t, flat, clf.Weights())
}

func TestLinearClassifierPredictRowsSumToOne(t *testing.T) {
	factory := NewModelFactory()

	clf, err := factory.New(models.ArchBFNet, 16)
	require.NoError(t, err)

	features := [][]float64{
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 0.0, 0.1, 0.2, 0.3, 0.4, 0.5},
		{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1, 0.0, 1.0, 0.9, 0.8, 0.7, 0.6, 0.5},
	}
	probs := clf.Predict(features)
	require.Len(t, probs, 2)
	for i, row := range probs {
		require.Len(t, row, 2, "row %d", i)
		assert.InDelta(t, 1.0, row[0]+row[1], 1e-12, "row %d", i)
		assert.GreaterOrEqual(t, row[1], 0.0)
		assert.LessOrEqual(t, row[1], 1.0)
	}
}

func TestLinearClassifierFitLearnsSeparableData(t *testing.T) {
	factory := NewModelFactory()

	clf, err := factory.New(models.ArchResNet, 8)
	require.NoError(t, err)

	samples := make([]models.Sample, 0, 40)
	for i := 0; i < 20; i++ {
		samples = append(samples,
			models.Sample{Features: []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9}, Label: 1},
			models.Sample{Features: []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}, Label: 0},
		)
	}

	loss := clf.Fit(samples, 50, 8, 0.5)
	assert.Less(t, loss, 0.2)

	probs := clf.Predict([][]float64{
		{0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9},
		{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
	})
	assert.Greater(t, probs[0][1], 0.5)
	assert.Less(t, probs[1][1], 0.5)
}
