package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type FoldResultStatus string

const (
	FoldResultStatusCompleted FoldResultStatus = "completed"
	FoldResultStatusFailed    FoldResultStatus = "failed"
)

// MetricsRecord holds the confusion-matrix-derived metrics for one
// (architecture, fold) evaluation. All values are in [0, 1]. Degenerate is
// set when the test partition contained a single class; the affected metrics
// carry the zero sentinel rather than a division-by-zero result.
type MetricsRecord struct {
	Accuracy    float64 `json:"accuracy"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
	ROCAUC      float64 `json:"roc_auc"`
	Degenerate  bool    `json:"degenerate,omitempty"`
}

func (m MetricsRecord) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MetricsRecord) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into MetricsRecord", value)
	}
	return json.Unmarshal(bytes, m)
}

// ModelSummary is the arithmetic mean of a model's per-fold metrics across
// every completed fold. Failed folds are excluded from the mean and counted.
type ModelSummary struct {
	Architecture    Architecture `json:"architecture"`
	Folds           int          `json:"folds"`
	CompletedFolds  int          `json:"completed_folds"`
	FailedFolds     int          `json:"failed_folds"`
	DegenerateFolds int          `json:"degenerate_folds"`
	Accuracy        float64      `json:"accuracy"`
	Sensitivity     float64      `json:"sensitivity"`
	Specificity     float64      `json:"specificity"`
	ROCAUC          float64      `json:"roc_auc"`
}

// TrainerConfig carries the fixed hyperparameters handed to the federated
// trainer for every (architecture, fold) run in an evaluation.
type TrainerConfig struct {
	Clients      int     `json:"clients"`
	Rounds       int     `json:"rounds"`
	LocalEpochs  int     `json:"local_epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`
}

func (t TrainerConfig) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *TrainerConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into TrainerConfig", value)
	}
	return json.Unmarshal(bytes, t)
}

// TrainingStats summarises one federated training run: the weighted averages
// and spread of the final round's client losses, in the shape produced by the
// aggregation step.
type TrainingStats struct {
	Rounds         int     `json:"rounds"`
	Clients        int     `json:"clients"`
	FinalLoss      float64 `json:"final_loss"`
	Variance       float64 `json:"variance"`
	Convergence    float64 `json:"convergence"`
	TrainingTimeMS int64   `json:"training_time_ms"`
}

func (t TrainingStats) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *TrainingStats) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into TrainingStats", value)
	}
	return json.Unmarshal(bytes, t)
}

type ArchitectureList []Architecture

func (a ArchitectureList) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ArchitectureList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ArchitectureList", value)
	}
	return json.Unmarshal(bytes, a)
}

type SummaryList []ModelSummary

func (s SummaryList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SummaryList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into SummaryList", value)
	}
	return json.Unmarshal(bytes, s)
}

// EvaluationRun is one cross-validated comparison of a set of architectures
// over a single dataset. Summaries is populated when the run completes.
type EvaluationRun struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string           `json:"name" gorm:"type:varchar(255);not null"`
	Description string           `json:"description" gorm:"type:text"`
	Status      RunStatus        `json:"status" gorm:"type:varchar(50)"`
	DatasetURI  string           `json:"dataset_uri" gorm:"type:varchar(512);not null"`
	DatasetSize int              `json:"dataset_size" gorm:"default:0"`
	Models      ArchitectureList `json:"models" gorm:"type:jsonb"`
	Folds       int              `json:"folds" gorm:"not null"`
	Seed        int64            `json:"seed" gorm:"not null"`
	Threshold   float64          `json:"threshold" gorm:"type:decimal(4,3);default:0.5"`
	Trainer     TrainerConfig    `json:"trainer" gorm:"type:jsonb"`
	Summaries   SummaryList      `json:"summaries" gorm:"type:jsonb"`
	Error       string           `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time        `json:"created_at" gorm:"type:timestamp"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"type:timestamp"`
	StartedAt   *time.Time       `json:"started_at" gorm:"type:timestamp"`
	CompletedAt *time.Time       `json:"completed_at" gorm:"type:timestamp"`
}

func NewEvaluationRun(name, description, datasetURI string, archs []Architecture, folds int, seed int64, threshold float64, trainer TrainerConfig) *EvaluationRun {
	now := time.Now()
	return &EvaluationRun{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      RunStatusPending,
		DatasetURI:  datasetURI,
		Models:      archs,
		Folds:       folds,
		Seed:        seed,
		Threshold:   threshold,
		Trainer:     trainer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FoldResult records the outcome of a single (architecture, fold)
// evaluation within a run. Failed folds carry the trainer error text and no
// metrics.
type FoldResult struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	RunID        uuid.UUID        `json:"run_id" gorm:"type:uuid;not null;index"`
	Architecture Architecture     `json:"architecture" gorm:"type:varchar(50);not null"`
	FoldNumber   int              `json:"fold_number" gorm:"not null"`
	Status       FoldResultStatus `json:"status" gorm:"type:varchar(50)"`
	Metrics      *MetricsRecord   `json:"metrics,omitempty" gorm:"type:jsonb"`
	Training     *TrainingStats   `json:"training,omitempty" gorm:"type:jsonb"`
	Error        string           `json:"error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time        `json:"created_at" gorm:"type:timestamp"`
	CompletedAt  *time.Time       `json:"completed_at" gorm:"type:timestamp"`
}

func NewFoldResult(runID uuid.UUID, arch Architecture, foldNumber int) *FoldResult {
	return &FoldResult{
		ID:           uuid.New(),
		RunID:        runID,
		Architecture: arch,
		FoldNumber:   foldNumber,
		CreatedAt:    time.Now(),
	}
}
