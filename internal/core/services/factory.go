package services

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/ports"
)

// archProfile fixes the per-architecture knobs of the simulated backbone:
// the width of the average-pooling window applied to the flattened input and
// the scale and seed of the weight initialisation. Real CNN definitions are
// out of scope; each profile stands in for one backbone so that runs remain
// comparable and reproducible.
type archProfile struct {
	poolWindow int
	initScale  float64
	initSeed   int64
}

var archProfiles = map[models.Architecture]archProfile{
	models.ArchResNet:   {poolWindow: 16, initScale: 0.05, initSeed: 101},
	models.ArchAlexNet:  {poolWindow: 8, initScale: 0.10, initSeed: 102},
	models.ArchZFNet:    {poolWindow: 32, initScale: 0.05, initSeed: 103},
	models.ArchBionnica: {poolWindow: 4, initScale: 0.05, initSeed: 104},
	models.ArchBFNet:    {poolWindow: 8, initScale: 0.02, initSeed: 105},
}

// ModelFactory builds fresh untrained classifiers for the closed
// architecture set.
type ModelFactory struct{}

func NewModelFactory() *ModelFactory {
	return &ModelFactory{}
}

func (f *ModelFactory) New(arch models.Architecture, inputDim int) (ports.Classifier, error) {
	profile, ok := archProfiles[arch]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedModel, arch)
	}
	if inputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be positive, got %d", inputDim)
	}
	return newLinearClassifier(arch, profile, inputDim), nil
}

// linearClassifier is a logistic-regression head over average-pooled input
// features: sigmoid(dot(w, pool(x)) + b). Every architecture shares this
// shape and differs only in its profile.
type linearClassifier struct {
	arch       models.Architecture
	poolWindow int
	inputDim   int
	pooledDim  int
	weights    []float64
	bias       float64
}

func newLinearClassifier(arch models.Architecture, profile archProfile, inputDim int) *linearClassifier {
	pooledDim := (inputDim + profile.poolWindow - 1) / profile.poolWindow

	// Seeded init: every fresh instance of an architecture starts from the
	// same weights, which keeps folds comparable.
	rng := rand.New(rand.NewSource(profile.initSeed))
	weights := make([]float64, pooledDim)
	for i := range weights {
		weights[i] = rng.Float64()*2*profile.initScale - profile.initScale
	}

	return &linearClassifier{
		arch:       arch,
		poolWindow: profile.poolWindow,
		inputDim:   inputDim,
		pooledDim:  pooledDim,
		weights:    weights,
	}
}

func (c *linearClassifier) Architecture() models.Architecture {
	return c.arch
}

// Weights returns the flattened parameter vector, bias last.
func (c *linearClassifier) Weights() []float64 {
	flat := make([]float64, len(c.weights)+1)
	copy(flat, c.weights)
	flat[len(c.weights)] = c.bias
	return flat
}

func (c *linearClassifier) SetWeights(flat []float64) {
	n := len(flat) - 1
	c.weights = make([]float64, n)
	copy(c.weights, flat[:n])
	c.bias = flat[n]
}

func (c *linearClassifier) pool(features []float64) []float64 {
	pooled := make([]float64, c.pooledDim)
	for i := 0; i < c.pooledDim; i++ {
		start := i * c.poolWindow
		end := start + c.poolWindow
		if end > len(features) {
			end = len(features)
		}
		sum := 0.0
		for _, v := range features[start:end] {
			sum += v
		}
		pooled[i] = sum / float64(end-start)
	}
	return pooled
}

func (c *linearClassifier) forward(features []float64) float64 {
	x := c.pool(features)
	z := c.bias
	for i, xi := range x {
		z += c.weights[i] * xi
	}
	return sigmoid(z)
}

// Fit runs mini-batch SGD on the binary cross-entropy loss. Gradients:
// dL/dw_i = (p-y)*x_i, dL/db = (p-y). Returns the final mean BCE loss.
func (c *linearClassifier) Fit(samples []models.Sample, epochs, batchSize int, learningRate float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	if batchSize <= 0 {
		batchSize = n
	}

	for epoch := 0; epoch < epochs; epoch++ {
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			batch := samples[start:end]

			dw := make([]float64, len(c.weights))
			db := 0.0
			for _, s := range batch {
				x := c.pool(s.Features)
				p := c.forward(s.Features)
				diff := p - float64(s.Label)
				for i, xi := range x {
					dw[i] += diff * xi
				}
				db += diff
			}

			batchLen := float64(len(batch))
			for i := range c.weights {
				c.weights[i] -= learningRate * dw[i] / batchLen
			}
			c.bias -= learningRate * db / batchLen
		}
	}

	return c.loss(samples)
}

func (c *linearClassifier) Predict(features [][]float64) [][]float64 {
	probs := make([][]float64, len(features))
	for i, row := range features {
		p := c.forward(row)
		probs[i] = []float64{1 - p, p}
	}
	return probs
}

// loss is the mean binary cross-entropy over samples.
func (c *linearClassifier) loss(samples []models.Sample) float64 {
	total := 0.0
	for _, s := range samples {
		p := clamp(c.forward(s.Features), 1e-9, 1-1e-9)
		y := float64(s.Label)
		total += -(y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	return total / float64(len(samples))
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
