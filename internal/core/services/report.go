package services

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/gocarina/gocsv"

	"github.com/curalab/fedbench/internal/core/models"
)

// ReportRow is one line of the evaluation report: the mean held-out metrics
// of a single architecture across all completed folds.
type ReportRow struct {
	Model          string  `csv:"model"`
	Folds          int     `csv:"folds"`
	CompletedFolds int     `csv:"completed_folds"`
	FailedFolds    int     `csv:"failed_folds"`
	Accuracy       float64 `csv:"mean_accuracy"`
	Sensitivity    float64 `csv:"mean_sensitivity"`
	Specificity    float64 `csv:"mean_specificity"`
	ROCAUC         float64 `csv:"mean_roc_auc"`
}

// BuildReport flattens per-model summaries into rows sorted by model name.
func BuildReport(summaries map[models.Architecture]*models.ModelSummary) []ReportRow {
	list := make(models.SummaryList, 0, len(summaries))
	for _, s := range summaries {
		list = append(list, *s)
	}
	return BuildReportFromList(list)
}

// BuildReportFromList is BuildReport for summaries already flattened into a
// persisted SummaryList.
func BuildReportFromList(summaries models.SummaryList) []ReportRow {
	rows := make([]ReportRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, ReportRow{
			Model:          s.Architecture.String(),
			Folds:          s.Folds,
			CompletedFolds: s.CompletedFolds,
			FailedFolds:    s.FailedFolds,
			Accuracy:       s.Accuracy,
			Sensitivity:    s.Sensitivity,
			Specificity:    s.Specificity,
			ROCAUC:         s.ROCAUC,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Model < rows[j].Model })
	return rows
}

// WriteReportCSV renders the rows as a comma-delimited table with a header.
func WriteReportCSV(w io.Writer, rows []ReportRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write report csv: %w", err)
	}
	return nil
}

// WriteReportTable renders an aligned human-readable table for the CLI.
func WriteReportTable(w io.Writer, rows []ReportRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tFOLDS\tFAILED\tACCURACY\tSENSITIVITY\tSPECIFICITY\tROC-AUC")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%.4f\t%.4f\t%.4f\t%.4f\n",
			r.Model, r.CompletedFolds, r.Folds, r.FailedFolds,
			r.Accuracy, r.Sensitivity, r.Specificity, r.ROCAUC)
	}
	return tw.Flush()
}
