package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// SaveJSON writes the report as indented JSON.
func (r *Report) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SaveCSV writes the per-record detail rows.
func SaveCSV(path string, rows []DetailRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create detail csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"timestamp_start", "cenario", "label_real", "predicao", "probability", "watchdog_reason", "ia_wait_secs"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.TimestampStart,
			row.Scenario,
			row.Label,
			row.Prediction,
			formatFloat(row.Probability),
			row.WatchdogReason,
			formatFloat(row.WaitedSeconds),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Summary renders the console recap printed after an evaluation.
func (r *Report) Summary() string {
	out := fmt.Sprintf("total records: %d\nvalid for metrics: %d\nTP: %d, TN: %d, FP: %d, FN: %d\n",
		r.TotalRecords, r.TotalValid, r.TP, r.TN, r.FP, r.FN)
	out += "accuracy: " + metricString(r.Accuracy) + "\n"
	out += "precision: " + metricString(r.Precision) + "\n"
	out += "recall: " + metricString(r.Recall) + "\n"
	out += "f1: " + metricString(r.F1)
	return out
}

func metricString(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
