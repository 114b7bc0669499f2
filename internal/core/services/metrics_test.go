package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCalculatorPerfectClassifier(t *testing.T) {
	calc := NewMetricsCalculator()

	trueLabels := []int{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	probs := make([][]float64, len(trueLabels))
	for i, label := range trueLabels {
		if label == 1 {
			probs[i] = []float64{0.1, 0.9}
		} else {
			probs[i] = []float64{0.9, 0.1}
		}
	}

	record, err := calc.Compute(trueLabels, probs, DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, 1.0, record.Accuracy)
	assert.Equal(t, 1.0, record.Sensitivity)
	assert.Equal(t, 1.0, record.Specificity)
	assert.Equal(t, 1.0, record.ROCAUC)
	assert.False(t, record.Degenerate)
}

func TestMetricsCalculatorAllPositivesMissed(t *testing.T) {
	calc := NewMetricsCalculator()

	// Every positive scored below every negative, everything predicted
	// negative: tp=0 fn=5 tn=5 fp=0.
	trueLabels := []int{1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	probs := make([][]float64, len(trueLabels))
	for i, label := range trueLabels {
		if label == 1 {
			probs[i] = []float64{0.9, 0.1}
		} else {
			probs[i] = []float64{0.8, 0.2}
		}
	}

	record, err := calc.Compute(trueLabels, probs, DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, 0.5, record.Accuracy)
	assert.Equal(t, 0.0, record.Sensitivity)
	assert.Equal(t, 1.0, record.Specificity)
	assert.Equal(t, 0.0, record.ROCAUC)
	assert.False(t, record.Degenerate)
}

func TestMetricsCalculatorSingleClassIsDegenerate(t *testing.T) {
	calc := NewMetricsCalculator()

	trueLabels := []int{1, 1, 1, 1}
	probs := [][]float64{{0.2, 0.8}, {0.3, 0.7}, {0.1, 0.9}, {0.4, 0.6}}

	record, err := calc.Compute(trueLabels, probs, DefaultThreshold)
	require.NoError(t, err)

	assert.True(t, record.Degenerate)
	assert.Equal(t, 1.0, record.Accuracy)
	assert.Equal(t, 1.0, record.Sensitivity)
	// No negatives present: sentinel zeros, not real scores.
	assert.Equal(t, 0.0, record.Specificity)
	assert.Equal(t, 0.0, record.ROCAUC)
}

func TestMetricsCalculatorTiesCountHalf(t *testing.T) {
	calc := NewMetricsCalculator()

	trueLabels := []int{1, 0}
	probs := [][]float64{{0.5, 0.5}, {0.5, 0.5}}

	record, err := calc.Compute(trueLabels, probs, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.5, record.ROCAUC)
}

func TestMetricsCalculatorThresholdIsExclusive(t *testing.T) {
	calc := NewMetricsCalculator()

	// A probability exactly at the threshold predicts negative.
	trueLabels := []int{0, 1}
	probs := [][]float64{{0.5, 0.5}, {0.3, 0.7}}

	record, err := calc.Compute(trueLabels, probs, DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, 1.0, record.Accuracy)
	assert.Equal(t, 1.0, record.Specificity)
	assert.Equal(t, 1.0, record.Sensitivity)
}

func TestMetricsCalculatorRejectsMalformedInput(t *testing.T) {
	calc := NewMetricsCalculator()

	tests := []struct {
		name   string
		labels []int
		probs  [][]float64
	}{
		{name: "empty", labels: nil, probs: nil},
		{name: "length mismatch", labels: []int{0, 1}, probs: [][]float64{{0.5, 0.5}}},
		{name: "wrong row width", labels: []int{0}, probs: [][]float64{{0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Compute(tt.labels, tt.probs, DefaultThreshold)
			assert.Error(t, err)
		})
	}
}

func TestBuildConfusionMatrix(t *testing.T) {
	cm, err := BuildConfusionMatrix(
		[]int{1, 1, 1, 0, 0, 0},
		[]int{1, 1, 0, 0, 0, 1},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, cm.TP)
	assert.Equal(t, 1, cm.FN)
	assert.Equal(t, 2, cm.TN)
	assert.Equal(t, 1, cm.FP)
	assert.InDelta(t, 4.0/6.0, cm.Accuracy(), 1e-12)
	assert.InDelta(t, 2.0/3.0, cm.Sensitivity(), 1e-12)
	assert.InDelta(t, 2.0/3.0, cm.Specificity(), 1e-12)
}

func TestBuildConfusionMatrixRejectsOutOfRangeLabel(t *testing.T) {
	_, err := BuildConfusionMatrix([]int{0, 2}, []int{0, 1})
	assert.Error(t, err)
}
