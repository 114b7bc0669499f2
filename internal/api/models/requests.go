package models

// TrainerConfigRequest overrides the server-side federated-training
// defaults for one evaluation run.
type TrainerConfigRequest struct {
	Clients      int     `json:"clients" binding:"required,min=1"`
	Rounds       int     `json:"rounds" binding:"required,min=1"`
	LocalEpochs  int     `json:"local_epochs" binding:"required,min=1"`
	BatchSize    int     `json:"batch_size" binding:"required,min=1"`
	LearningRate float64 `json:"learning_rate" binding:"required,gt=0"`
	Seed         int64   `json:"seed"`
}

type CreateEvaluationRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	DatasetURI  string                `json:"dataset_uri" binding:"required"`
	Models      []string              `json:"models" binding:"required,min=1"`
	Folds       int                   `json:"folds" binding:"omitempty,min=2"`
	Seed        int64                 `json:"seed"`
	Threshold   float64               `json:"threshold"`
	Trainer     *TrainerConfigRequest `json:"trainer,omitempty"`
}

type MetricsResponse struct {
	Accuracy    float64 `json:"accuracy"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
	ROCAUC      float64 `json:"roc_auc"`
	Degenerate  bool    `json:"degenerate,omitempty"`
}

type ModelSummaryResponse struct {
	Model           string  `json:"model"`
	Folds           int     `json:"folds"`
	CompletedFolds  int     `json:"completed_folds"`
	FailedFolds     int     `json:"failed_folds"`
	DegenerateFolds int     `json:"degenerate_folds"`
	Accuracy        float64 `json:"accuracy"`
	Sensitivity     float64 `json:"sensitivity"`
	Specificity     float64 `json:"specificity"`
	ROCAUC          float64 `json:"roc_auc"`
}

type EvaluationRunResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Status      string                 `json:"status"`
	DatasetURI  string                 `json:"dataset_uri"`
	DatasetSize int                    `json:"dataset_size"`
	Models      []string               `json:"models"`
	Folds       int                    `json:"folds"`
	Seed        int64                  `json:"seed"`
	Threshold   float64                `json:"threshold"`
	Summaries   []ModelSummaryResponse `json:"summaries,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
	StartedAt   *string                `json:"started_at,omitempty"`
	CompletedAt *string                `json:"completed_at,omitempty"`
}

type FoldResultResponse struct {
	ID           string           `json:"id"`
	Model        string           `json:"model"`
	FoldNumber   int              `json:"fold_number"`
	Status       string           `json:"status"`
	Metrics      *MetricsResponse `json:"metrics,omitempty"`
	Error        string           `json:"error,omitempty"`
	TrainingTime int64            `json:"training_time_ms,omitempty"`
}
