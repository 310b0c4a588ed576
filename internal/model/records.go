package model

import "encoding/json"

// Scenario is a static descriptor of one traffic-generation scenario.
// Configuration data, not runtime state.
type Scenario struct {
	Name     string `yaml:"name"`
	Command  string `yaml:"command"`
	Duration int    `yaml:"duration"` // expected duration in seconds
	Label    string `yaml:"label"`    // "attack" or "normal"
}

// Labels used in scenario configuration and result records.
const (
	LabelAttack = "attack"
	LabelNormal = "normal"
)

// ScenarioResult is one row of the scenario result log. Field names are fixed:
// downstream evaluation tooling parses them.
type ScenarioResult struct {
	TimestampStart   string          `json:"timestamp_start"`
	TimestampEnd     string          `json:"timestamp_end"`
	Scenario         string          `json:"cenario"`
	Label            string          `json:"label_real"`
	Command          string          `json:"cmd"`
	WatchdogExitCode int             `json:"watchdog_exit_code"`
	WatchdogReason   string          `json:"watchdog_reason"`
	WaitedSeconds    float64         `json:"ia_wait_secs"`
	Changed          bool            `json:"ia_changed"`
	DetectorResult   json.RawMessage `json:"detector_result"`
}

// TrafficRecord is one row of the legitimate-traffic log, produced once per
// browse scenario.
type TrafficRecord struct {
	TimestampStart string          `json:"timestamp_start"`
	TimestampEnd   string          `json:"timestamp_end_scenario"`
	SessionIndex   int             `json:"session_index"`
	Scenario       string          `json:"cenario"`
	Label          string          `json:"label_real"`
	ExecutionID    string          `json:"detector_execId"`
	Summary        json.RawMessage `json:"detector_summary"`
	ScenarioDetail json.RawMessage `json:"scenario_result"`
	DetectorResult json.RawMessage `json:"detector_result"`
}

// SubmissionRecord is one row of the flow-submission log, written for every
// batch the extractor sends to the detector.
type SubmissionRecord struct {
	Timestamp  string          `json:"timestamp"`
	FlowsCount int             `json:"flows_count"`
	Response   json.RawMessage `json:"response"`
}
