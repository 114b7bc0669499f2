package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/curalab/fedbench/internal/core/models"
)

// ErrDegenerateFold is returned when a stratified split cannot place at
// least one sample of every class into each test partition.
var ErrDegenerateFold = errors.New("degenerate fold: a class has fewer samples than folds")

// StratifiedSplitter produces k label-balanced cross-validation folds.
// Splits are deterministic for a given seed: each class's indices are
// shuffled once with the seeded source and dealt round-robin into the k test
// buckets, so every index lands in exactly one test set and class
// proportions carry over into every partition.
type StratifiedSplitter struct {
	seed int64
}

func NewStratifiedSplitter(seed int64) *StratifiedSplitter {
	return &StratifiedSplitter{seed: seed}
}

func (s *StratifiedSplitter) Split(labels []int, k int) ([]models.Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("fold count must be at least 2, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(labels), k)
	}

	byClass := map[int][]int{}
	for idx, label := range labels {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("index %d: label %d out of range", idx, label)
		}
		byClass[label] = append(byClass[label], idx)
	}
	if len(byClass) < 2 {
		return nil, fmt.Errorf("%w: dataset contains a single class", ErrDegenerateFold)
	}
	for label, indices := range byClass {
		if len(indices) < k {
			return nil, fmt.Errorf("%w: class %d has %d samples for %d folds", ErrDegenerateFold, label, len(indices), k)
		}
	}

	rng := rand.New(rand.NewSource(s.seed))
	testBuckets := make([][]int, k)

	// Classes are visited in fixed order so the rng consumption, and
	// therefore the split, is reproducible.
	for _, label := range []int{0, 1} {
		indices := append([]int(nil), byClass[label]...)
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for pos, idx := range indices {
			bucket := pos % k
			testBuckets[bucket] = append(testBuckets[bucket], idx)
		}
	}

	folds := make([]models.Fold, k)
	for f := 0; f < k; f++ {
		sort.Ints(testBuckets[f])
		inTest := make(map[int]struct{}, len(testBuckets[f]))
		for _, idx := range testBuckets[f] {
			inTest[idx] = struct{}{}
		}

		train := make([]int, 0, len(labels)-len(testBuckets[f]))
		for idx := range labels {
			if _, ok := inTest[idx]; !ok {
				train = append(train, idx)
			}
		}

		folds[f] = models.Fold{
			Number:   f + 1,
			TrainIdx: train,
			TestIdx:  testBuckets[f],
		}
	}

	return folds, nil
}
