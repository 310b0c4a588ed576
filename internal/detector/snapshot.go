package detector

import (
	"encoding/json"
)

// Error kinds carried by snapshots and await results.
const (
	ErrKindRequestFailed = "request_exception"
	ErrKindInvalidJSON   = "invalid_json"
	ErrKindNoExecutionID = "no_execution_id"
	ErrKindPostException = "post_exception"
	ErrKindTimeout       = "timeout_waiting_analysis"
)

// Snapshot is the detector state seen by one fetch: either a verdict JSON
// value or an error marker. Both forms participate in diff comparison, so an
// error-to-verdict transition (or vice versa) counts as a change.
type Snapshot struct {
	Verdict json.RawMessage
	ErrKind string
	Detail  string
}

// OkSnapshot wraps a verdict JSON value.
func OkSnapshot(verdict json.RawMessage) Snapshot {
	return Snapshot{Verdict: verdict}
}

// ErrSnapshot wraps a fetch failure as a snapshot value.
func ErrSnapshot(kind, detail string) Snapshot {
	return Snapshot{ErrKind: kind, Detail: detail}
}

// OK reports whether the snapshot carries a verdict rather than an error.
func (s Snapshot) OK() bool {
	return s.ErrKind == ""
}

// MarshalJSON renders the verdict as-is, and the error form as an object with
// an "error" key, so both land in result records the same way.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.OK() {
		if len(s.Verdict) == 0 {
			return []byte("null"), nil
		}
		return s.Verdict, nil
	}
	return json.Marshal(map[string]string{"error": s.ErrKind, "detail": s.Detail})
}

// canonical returns a deterministic serialization used for equality: the
// detector has no versioning, so change detection compares serialized forms.
// Verdict objects are rendered with sorted keys by re-marshaling through an
// interface value.
func (s Snapshot) canonical() string {
	if !s.OK() {
		return "err:" + s.ErrKind + ":" + s.Detail
	}
	var v interface{}
	if err := json.Unmarshal(s.Verdict, &v); err != nil {
		return "raw:" + string(s.Verdict)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "raw:" + string(s.Verdict)
	}
	return string(b)
}

// Equal reports whether two snapshots serialize identically.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.canonical() == other.canonical()
}

// AwaitResult is the outcome of execution-id polling: the verdict when the
// detector answered, otherwise an error kind, always with the execution id
// when one was issued.
type AwaitResult struct {
	ExecutionID string
	Verdict     json.RawMessage
	ErrKind     string
	Detail      string
}

// OK reports whether the result carries a verdict.
func (r AwaitResult) OK() bool {
	return r.ErrKind == ""
}

// LogValue renders the result the way it is recorded: the raw verdict when
// present, otherwise an error object carrying the execution id for later
// correlation.
func (r AwaitResult) LogValue() json.RawMessage {
	if r.OK() {
		return r.Verdict
	}
	obj := map[string]string{"error": r.ErrKind}
	if r.Detail != "" {
		obj["detail"] = r.Detail
	}
	if r.ExecutionID != "" {
		obj["execId"] = r.ExecutionID
	}
	b, _ := json.Marshal(obj)
	return b
}
