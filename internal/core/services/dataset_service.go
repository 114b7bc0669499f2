package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/curalab/fedbench/internal/core/models"
)

// DatasetProfile describes one of the synthetic benchmark datasets. The
// feature dimensionality mirrors the source imagery's edge length; features
// stand in for pre-extracted image descriptors.
type DatasetProfile struct {
	Name     string
	InputDim int
	Samples  int
	// PositiveRate is the fraction of positive-class samples.
	PositiveRate float64
}

var datasetProfiles = map[string]DatasetProfile{
	"cervical":   {Name: "cervical", InputDim: 64, Samples: 400, PositiveRate: 0.5},
	"colorectal": {Name: "colorectal", InputDim: 224, Samples: 300, PositiveRate: 0.4},
}

// DatasetService resolves dataset URIs into in-memory datasets. Supported
// forms: a local CSV path, "s3://bucket/key" (CSV fetched via the storage
// service) and "synthetic:<profile>[:n]" for the built-in generators.
type DatasetService struct {
	s3 *S3Service
}

func NewDatasetService(s3 *S3Service) *DatasetService {
	return &DatasetService{s3: s3}
}

func (s *DatasetService) Resolve(ctx context.Context, uri string, seed int64) (*models.Dataset, error) {
	log := log.With().Str("component", "dataset_service").Str("uri", uri).Logger()

	switch {
	case strings.HasPrefix(uri, "synthetic:"):
		dataset, err := SyntheticDataset(strings.TrimPrefix(uri, "synthetic:"), seed)
		if err != nil {
			return nil, err
		}
		dataset.URI = uri
		log.Info().Int("samples", dataset.Size()).Msg("Generated synthetic dataset")
		return dataset, nil

	case strings.HasPrefix(uri, "s3://"):
		if s.s3 == nil {
			return nil, fmt.Errorf("s3 dataset %q requested but storage is not configured", uri)
		}
		bucket, key, err := parseS3URI(uri)
		if err != nil {
			return nil, err
		}
		data, err := s.s3.DownloadObject(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch dataset from s3: %w", err)
		}
		dataset, err := parseCSVDataset(strings.NewReader(string(data)), key)
		if err != nil {
			return nil, err
		}
		dataset.URI = uri
		log.Info().Int("samples", dataset.Size()).Msg("Loaded dataset from S3")
		return dataset, nil

	default:
		dataset, err := LoadCSVDataset(uri)
		if err != nil {
			return nil, err
		}
		log.Info().Int("samples", dataset.Size()).Msg("Loaded dataset from file")
		return dataset, nil
	}
}

func parseS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 uri: %q", uri)
	}
	return parts[0], parts[1], nil
}

// LoadCSVDataset reads a CSV file whose rows are feature columns followed by
// a trailing label column. Labels may be 0/1 integers or the strings
// "negative"/"positive". Features are min-max normalised per column.
func LoadCSVDataset(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	dataset, err := parseCSVDataset(f, path)
	if err != nil {
		return nil, err
	}
	dataset.URI = path
	return dataset, nil
}

func parseCSVDataset(r io.Reader, name string) (*models.Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	numFeatures := len(header) - 1
	if numFeatures < 1 {
		return nil, fmt.Errorf("dataset needs at least one feature column and a label column")
	}

	var rawFeatures [][]float64
	var labels []int

	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		feats := make([]float64, numFeatures)
		for i := 0; i < numFeatures; i++ {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", row, i, err)
			}
			feats[i] = v
		}

		label, err := parseLabel(record[numFeatures])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		rawFeatures = append(rawFeatures, feats)
		labels = append(labels, label)
	}

	if len(rawFeatures) == 0 {
		return nil, fmt.Errorf("dataset %q has no rows", name)
	}

	normalizeColumns(rawFeatures)

	samples := make([]models.Sample, len(rawFeatures))
	for i := range rawFeatures {
		samples[i] = models.Sample{Features: rawFeatures[i], Label: labels[i]}
	}

	return &models.Dataset{
		Name:     name,
		InputDim: numFeatures,
		Samples:  samples,
	}, nil
}

func parseLabel(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "negative":
		return 0, nil
	case "1", "positive":
		return 1, nil
	default:
		return 0, fmt.Errorf("unrecognised label %q", raw)
	}
}

// normalizeColumns rescales each feature column to [0, 1] in place.
// Constant columns map to 0.
func normalizeColumns(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	mins := append([]float64(nil), rows[0]...)
	maxs := append([]float64(nil), rows[0]...)
	for _, row := range rows[1:] {
		for j, v := range row {
			if v < mins[j] {
				mins[j] = v
			}
			if v > maxs[j] {
				maxs[j] = v
			}
		}
	}
	for _, row := range rows {
		for j := 0; j < cols; j++ {
			span := maxs[j] - mins[j]
			if span == 0 {
				row[j] = 0
			} else {
				row[j] = (row[j] - mins[j]) / span
			}
		}
	}
}

// SyntheticDataset generates a labelled dataset for one of the built-in
// profiles ("cervical", "colorectal"), optionally with an explicit sample
// count ("cervical:500"). Positive samples cluster above 0.5 per feature,
// negatives below, so the task is learnable but not trivial. Deterministic
// for a given seed.
func SyntheticDataset(spec string, seed int64) (*models.Dataset, error) {
	name := spec
	count := 0
	if idx := strings.Index(spec, ":"); idx >= 0 {
		name = spec[:idx]
		n, err := strconv.Atoi(spec[idx+1:])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid synthetic sample count in %q", spec)
		}
		count = n
	}

	profile, ok := datasetProfiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown synthetic dataset profile %q", name)
	}
	if count > 0 {
		profile.Samples = count
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([]models.Sample, profile.Samples)
	positives := int(float64(profile.Samples) * profile.PositiveRate)

	for i := range samples {
		label := 0
		mean := 0.35
		if i < positives {
			label = 1
			mean = 0.65
		}
		features := make([]float64, profile.InputDim)
		for j := range features {
			features[j] = clamp(mean+(rng.Float64()-0.5)*0.6, 0, 1)
		}
		samples[i] = models.Sample{Features: features, Label: label}
	}

	// Interleave classes so contiguous client partitions stay mixed.
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	return &models.Dataset{
		Name:     profile.Name,
		InputDim: profile.InputDim,
		Samples:  samples,
	}, nil
}

// Profiles lists the built-in synthetic dataset profiles.
func Profiles() []DatasetProfile {
	return []DatasetProfile{datasetProfiles["cervical"], datasetProfiles["colorectal"]}
}
