package services

import (
	"fmt"

	"github.com/curalab/fedbench/internal/core/models"
)

// DefaultThreshold is the positive-class probability cutoff used when a run
// does not override it.
const DefaultThreshold = 0.5

// ConfusionMatrix is the 2x2 tally of (true label, predicted label) pairs.
type ConfusionMatrix struct {
	TN, FP, FN, TP int
}

// MetricsCalculator derives classification metrics from held-out
// predictions. It is stateless and safe for concurrent use.
type MetricsCalculator struct{}

func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// Compute binarises the positive-class probabilities, predicting positive
// only when the probability is strictly above threshold, builds the
// confusion matrix against trueLabels and returns the metrics record.
// Sensitivity, specificity and ROC-AUC fall back to a 0 sentinel when the
// test set lacks the corresponding class; the record is flagged Degenerate
// so callers can tell sentinel zeros from real ones.
func (c *MetricsCalculator) Compute(trueLabels []int, probabilities [][]float64, threshold float64) (*models.MetricsRecord, error) {
	if len(trueLabels) == 0 {
		return nil, fmt.Errorf("no labels to score")
	}
	if len(trueLabels) != len(probabilities) {
		return nil, fmt.Errorf("label/probability length mismatch: %d vs %d", len(trueLabels), len(probabilities))
	}

	positiveProbs := make([]float64, len(probabilities))
	predicted := make([]int, len(probabilities))
	for i, p := range probabilities {
		if len(p) != 2 {
			return nil, fmt.Errorf("row %d: expected 2 class probabilities, got %d", i, len(p))
		}
		positiveProbs[i] = p[1]
		if p[1] > threshold {
			predicted[i] = 1
		}
	}

	cm, err := BuildConfusionMatrix(trueLabels, predicted)
	if err != nil {
		return nil, err
	}

	record := &models.MetricsRecord{
		Accuracy:    cm.Accuracy(),
		Sensitivity: cm.Sensitivity(),
		Specificity: cm.Specificity(),
	}

	auc, degenerate := rocAUC(trueLabels, positiveProbs)
	record.ROCAUC = auc
	record.Degenerate = degenerate || cm.TP+cm.FN == 0 || cm.TN+cm.FP == 0

	return record, nil
}

// BuildConfusionMatrix tallies (true, predicted) pairs. Labels outside {0,1}
// are rejected.
func BuildConfusionMatrix(trueLabels, predicted []int) (*ConfusionMatrix, error) {
	if len(trueLabels) != len(predicted) {
		return nil, fmt.Errorf("label length mismatch: %d vs %d", len(trueLabels), len(predicted))
	}

	var cm ConfusionMatrix
	for i := range trueLabels {
		if trueLabels[i] != 0 && trueLabels[i] != 1 {
			return nil, fmt.Errorf("row %d: label %d out of range", i, trueLabels[i])
		}
		switch {
		case trueLabels[i] == 1 && predicted[i] == 1:
			cm.TP++
		case trueLabels[i] == 1 && predicted[i] == 0:
			cm.FN++
		case trueLabels[i] == 0 && predicted[i] == 1:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return &cm, nil
}

func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.TP + cm.TN + cm.FP + cm.FN
	if total == 0 {
		return 0
	}
	return float64(cm.TP+cm.TN) / float64(total)
}

// Sensitivity is the true-positive rate, 0 when no positives are present.
func (cm *ConfusionMatrix) Sensitivity() float64 {
	if cm.TP+cm.FN == 0 {
		return 0
	}
	return float64(cm.TP) / float64(cm.TP+cm.FN)
}

// Specificity is the true-negative rate, 0 when no negatives are present.
func (cm *ConfusionMatrix) Specificity() float64 {
	if cm.TN+cm.FP == 0 {
		return 0
	}
	return float64(cm.TN) / float64(cm.TN+cm.FP)
}

// rocAUC computes the probability that a randomly chosen positive sample is
// scored above a randomly chosen negative one, counting ties as half. When
// only one class is present the AUC is undefined; the 0 sentinel is returned
// with degenerate set.
func rocAUC(trueLabels []int, positiveProbs []float64) (auc float64, degenerate bool) {
	var positives, negatives []float64
	for i, label := range trueLabels {
		if label == 1 {
			positives = append(positives, positiveProbs[i])
		} else {
			negatives = append(negatives, positiveProbs[i])
		}
	}

	if len(positives) == 0 || len(negatives) == 0 {
		return 0, true
	}

	ranked := 0.0
	for _, p := range positives {
		for _, n := range negatives {
			switch {
			case p > n:
				ranked++
			case p == n:
				ranked += 0.5
			}
		}
	}
	return ranked / float64(len(positives)*len(negatives)), false
}
