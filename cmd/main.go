package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curalab/fedbench/cmd/cli"
	"github.com/curalab/fedbench/internal/core/models"
	"github.com/curalab/fedbench/internal/core/services"
	"github.com/curalab/fedbench/pkg/logger"
)

var logMode string

var rootCmd = &cobra.Command{
	Use:   "fedbench",
	Short: "Federated evaluation harness for medical-imaging classifiers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch logMode {
		case "debug", "pretty", "info", "prod", "test":
			logger.InitWithMode(logger.Mode(logMode))
		default:
			logger.InitWithMode(logger.ModePretty)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")

	evaluateCmd.Flags().String("dataset", "synthetic:cervical", "Dataset location: CSV path, s3://bucket/key or synthetic:<profile>[:n]")
	evaluateCmd.Flags().String("models", allModels(), "Comma-separated model architectures")
	evaluateCmd.Flags().Int("folds", 5, "Number of stratified cross-validation folds")
	evaluateCmd.Flags().Int64("seed", 42, "Random seed for fold splits and synthetic data")
	evaluateCmd.Flags().Float64("threshold", services.DefaultThreshold, "Positive-class probability threshold")
	evaluateCmd.Flags().String("out", "", "Write the report as CSV to this path")
	evaluateCmd.Flags().Bool("upload", false, "Upload the CSV report to the configured S3 bucket")
	evaluateCmd.Flags().Int("clients", 3, "Simulated federated clients")
	evaluateCmd.Flags().Int("rounds", 5, "Federated aggregation rounds")
	evaluateCmd.Flags().Int("local-epochs", 10, "Local training epochs per round")
	evaluateCmd.Flags().Int("batch-size", 32, "Local training batch size")
	evaluateCmd.Flags().Float64("learning-rate", 0.1, "Local training learning rate")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(migrateCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the fedbench evaluation server",
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run a cross-validated model comparison and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataset, _ := cmd.Flags().GetString("dataset")
		modelsFlag, _ := cmd.Flags().GetString("models")
		folds, _ := cmd.Flags().GetInt("folds")
		seed, _ := cmd.Flags().GetInt64("seed")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		out, _ := cmd.Flags().GetString("out")
		upload, _ := cmd.Flags().GetBool("upload")
		clients, _ := cmd.Flags().GetInt("clients")
		rounds, _ := cmd.Flags().GetInt("rounds")
		localEpochs, _ := cmd.Flags().GetInt("local-epochs")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		learningRate, _ := cmd.Flags().GetFloat64("learning-rate")

		opts := cli.EvaluateOptions{
			DatasetURI: dataset,
			Models:     strings.Split(modelsFlag, ","),
			Folds:      folds,
			Seed:       seed,
			Threshold:  threshold,
			OutPath:    out,
			Upload:     upload,
			Trainer: models.TrainerConfig{
				Clients:      clients,
				Rounds:       rounds,
				LocalEpochs:  localEpochs,
				BatchSize:    batchSize,
				LearningRate: learningRate,
				Seed:         seed,
			},
		}
		return cli.RunEvaluate(context.Background(), opts)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunMigrate()
	},
}

func allModels() string {
	archs := models.SupportedArchitectures()
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}
