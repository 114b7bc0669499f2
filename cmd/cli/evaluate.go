package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/services"
	"github.com/curalab/fedbench/pkg/logger"
)

// EvaluateOptions are the flags of the `evaluate` subcommand.
type EvaluateOptions struct {
	DatasetURI string
	Models     []string
	Folds      int
	Seed       int64
	Threshold  float64
	OutPath    string
	Upload     bool
	Trainer    models.TrainerConfig
}

// RunEvaluate executes a one-shot evaluation directly against the harness,
// without the server or database: resolve the dataset, run every requested
// model over the shared folds and print the mean-metrics table.
func RunEvaluate(ctx context.Context, opts EvaluateOptions) error {
	log := logger.WithComponent("evaluate")

	archs := make([]models.Architecture, 0, len(opts.Models))
	for _, name := range opts.Models {
		arch, err := models.ParseArchitecture(name)
		if err != nil {
			return err
		}
		archs = append(archs, arch)
	}

	// S3-hosted datasets and report upload need credentials from the
	// config file; everything else runs without one.
	var s3Service *services.S3Service
	if opts.Upload || isS3URI(opts.DatasetURI) {
		cfg, err := config.GetConfigManager().GetConfig()
		if err != nil {
			return fmt.Errorf("s3 access requires configuration: %w", err)
		}
		s3Service, err = services.NewS3Service(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
	}

	datasets := services.NewDatasetService(s3Service)
	dataset, err := datasets.Resolve(ctx, opts.DatasetURI, opts.Seed)
	if err != nil {
		return err
	}

	negatives, positives := dataset.ClassCounts()
	log.Info().
		Str("dataset", dataset.Name).
		Int("samples", dataset.Size()).
		Int("negatives", negatives).
		Int("positives", positives).
		Int("folds", opts.Folds).
		Msg("Starting evaluation")

	harness := services.NewHarnessService(
		services.NewModelFactory(),
		services.NewFederatedTrainer(opts.Trainer),
		services.NewStratifiedSplitter(opts.Seed),
		opts.Threshold,
	)

	summaries, err := harness.Run(ctx, archs, dataset, opts.Folds)
	if err != nil {
		return err
	}

	rows := services.BuildReport(summaries)

	if err := services.WriteReportTable(os.Stdout, rows); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if opts.OutPath != "" {
		f, err := os.Create(opts.OutPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		if err := services.WriteReportCSV(f, rows); err != nil {
			return err
		}
		log.Info().Str("path", opts.OutPath).Msg("Wrote CSV report")
	}

	if opts.Upload {
		var buf []byte
		buf, err = renderCSV(rows)
		if err != nil {
			return err
		}
		url, err := s3Service.UploadReport(ctx, buf, dataset.Name)
		if err != nil {
			return err
		}
		log.Info().Str("url", url).Msg("Uploaded report")
	}

	return nil
}

func isS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

func renderCSV(rows []services.ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := services.WriteReportCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
