package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"NetGauntlet/internal/model"
	"NetGauntlet/internal/results"
)

// DefaultThreshold is the probability (in percent) at or above which a
// verdict counts as an attack prediction.
const DefaultThreshold = 75.0

// PredUnknown marks records whose verdict carries no usable probability.
// They are counted but excluded from the confusion matrix.
const PredUnknown = "unknown"

// Record is the common shape of scenario-result and traffic-record rows:
// only the columns the evaluation needs.
type Record struct {
	TimestampStart string          `json:"timestamp_start"`
	Scenario       string          `json:"cenario"`
	Label          string          `json:"label_real"`
	WatchdogReason string          `json:"watchdog_reason"`
	WaitedSeconds  *float64        `json:"ia_wait_secs"`
	DetectorResult json.RawMessage `json:"detector_result"`
}

// ScenarioMetrics is the per-scenario confusion-matrix breakdown.
type ScenarioMetrics struct {
	Count     int      `json:"count"`
	TP        int      `json:"TP"`
	TN        int      `json:"TN"`
	FP        int      `json:"FP"`
	FN        int      `json:"FN"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1        *float64 `json:"f1"`
}

// Report is the evaluation output. Metric pointers are nil (JSON null) when
// a denominator is zero, never a fabricated 0.
type Report struct {
	GeneratedAt      string                     `json:"generated_at"`
	Threshold        float64                    `json:"threshold"`
	TotalRecords     int                        `json:"total_records"`
	LabelCounts      map[string]int             `json:"label_counts"`
	PredictionCounts map[string]int             `json:"prediction_counts"`
	TotalValid       int                        `json:"total_valid_for_metrics"`
	TP               int                        `json:"TP"`
	TN               int                        `json:"TN"`
	FP               int                        `json:"FP"`
	FN               int                        `json:"FN"`
	Accuracy         *float64                   `json:"accuracy"`
	Precision        *float64                   `json:"precision"`
	Recall           *float64                   `json:"recall"`
	F1               *float64                   `json:"f1"`
	PerScenario      map[string]ScenarioMetrics `json:"per_scenario"`
}

// DetailRow is one line of the per-record CSV detail.
type DetailRow struct {
	TimestampStart string
	Scenario       string
	Label          string
	Prediction     string
	Probability    *float64
	WatchdogReason string
	WaitedSeconds  *float64
}

// LoadRecords reads JSONL rows from every path, skipping blank lines and
// recovering lines saved with a trailing comma. A missing file is a warning,
// not an error, so mixed runner/traffic inputs can be evaluated while some
// logs do not exist yet.
func LoadRecords(paths []string) ([]Record, error) {
	var records []Record
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				log.Printf("warning: input file not found: %s", path)
				continue
			}
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
		count := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec Record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				if err2 := json.Unmarshal([]byte(strings.TrimRight(line, ",")), &rec); err2 != nil {
					log.Printf("warning: skipping unparseable line in %s: %v", path, err)
					continue
				}
			}
			records = append(records, rec)
			count++
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		log.Printf("loaded %d records from %s", count, path)
	}
	return records, nil
}

// ExtractProbability digs the dos_attack_probability value out of a detector
// result: a JSON number, a numeric string with an optional percent suffix, or
// the same field inside an embedded "raw" JSON string. Nil when absent.
func ExtractProbability(detectorResult json.RawMessage) *float64 {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(detectorResult, &obj); err != nil {
		return nil
	}

	if v, ok := obj["dos_attack_probability"]; ok {
		if p := parseNumeric(v); p != nil {
			return p
		}
		return nil
	}

	if rawVal, ok := obj["raw"]; ok {
		var rawText string
		if err := json.Unmarshal(rawVal, &rawText); err != nil {
			return nil
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal([]byte(rawText), &inner); err != nil {
			return nil
		}
		if v, ok := inner["dos_attack_probability"]; ok {
			return parseNumeric(v)
		}
	}
	return nil
}

// parseNumeric accepts a JSON number or a numeric string like "85" or "85%".
func parseNumeric(v json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Predict maps a probability to a label, or "unknown" without one.
func Predict(prob *float64, threshold float64) string {
	if prob == nil {
		return PredUnknown
	}
	if *prob >= threshold {
		return model.LabelAttack
	}
	return model.LabelNormal
}

// Evaluate builds the confusion matrix over every record with a valid label
// and prediction, plus the per-record detail rows.
func Evaluate(records []Record, threshold float64) (*Report, []DetailRow) {
	report := &Report{
		GeneratedAt:      results.NowISO(),
		Threshold:        threshold,
		TotalRecords:     len(records),
		LabelCounts:      map[string]int{},
		PredictionCounts: map[string]int{},
		PerScenario:      map[string]ScenarioMetrics{},
	}
	rows := make([]DetailRow, 0, len(records))

	for _, rec := range records {
		label := rec.Label
		if label == "" {
			label = PredUnknown
		}
		report.LabelCounts[label]++

		prob := ExtractProbability(rec.DetectorResult)
		pred := Predict(prob, threshold)
		report.PredictionCounts[pred]++

		if validLabel(label) && validLabel(pred) {
			scen := rec.Scenario
			if scen == "" {
				scen = PredUnknown
			}
			sm := report.PerScenario[scen]
			sm.Count++
			switch {
			case label == model.LabelAttack && pred == model.LabelAttack:
				report.TP++
				sm.TP++
			case label == model.LabelNormal && pred == model.LabelNormal:
				report.TN++
				sm.TN++
			case label == model.LabelNormal && pred == model.LabelAttack:
				report.FP++
				sm.FP++
			default:
				report.FN++
				sm.FN++
			}
			report.PerScenario[scen] = sm
		}

		rows = append(rows, DetailRow{
			TimestampStart: rec.TimestampStart,
			Scenario:       rec.Scenario,
			Label:          label,
			Prediction:     pred,
			Probability:    prob,
			WatchdogReason: rec.WatchdogReason,
			WaitedSeconds:  rec.WaitedSeconds,
		})
	}

	report.TotalValid = report.TP + report.TN + report.FP + report.FN
	report.Accuracy = ratio(report.TP+report.TN, report.TotalValid)
	report.Precision = ratio(report.TP, report.TP+report.FP)
	report.Recall = ratio(report.TP, report.TP+report.FN)
	report.F1 = f1Score(report.Precision, report.Recall)

	for scen, sm := range report.PerScenario {
		sm.Precision = ratio(sm.TP, sm.TP+sm.FP)
		sm.Recall = ratio(sm.TP, sm.TP+sm.FN)
		sm.F1 = f1Score(sm.Precision, sm.Recall)
		report.PerScenario[scen] = sm
	}
	return report, rows
}

func validLabel(label string) bool {
	return label == model.LabelAttack || label == model.LabelNormal
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// f1Score keeps the harmonic mean undefined when either side is missing or
// zero, matching how the matrix reports degenerate runs.
func f1Score(precision, recall *float64) *float64 {
	if precision == nil || recall == nil || *precision == 0 || *recall == 0 {
		return nil
	}
	v := 2 * *precision * *recall / (*precision + *recall)
	return &v
}
