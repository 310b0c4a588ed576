package detector

import (
	"testing"

	"NetGauntlet/internal/config"
)

func TestNewFlowAnalyzerRequiresKey(t *testing.T) {
	if _, err := NewFlowAnalyzer(&config.AIConfig{}); err == nil {
		t.Error("expected an error without an API key")
	}
	if _, err := NewFlowAnalyzer(&config.AIConfig{APIKey: "k", BaseURL: "http://localhost:11434/v1"}); err != nil {
		t.Errorf("unexpected error with a key: %v", err)
	}
}

func TestParseVerdictStrictAndEmbedded(t *testing.T) {
	// 1. A clean JSON answer parses directly.
	v, err := ParseVerdict(`{"dos_attack_probability": 92, "justification": "flood", "ip_origin": ["10.0.0.9"]}`)
	if err != nil {
		t.Fatalf("strict parse failed: %v", err)
	}
	if v.DosAttackProbability != 92 || len(v.IPOrigin) != 1 {
		t.Errorf("unexpected verdict %+v", v)
	}

	// 2. Small models wrap the object in prose; the fallback digs it out.
	v, err = ParseVerdict("Sure! Here is my analysis:\n{\"dos_attack_probability\": 40, \"justification\": \"mixed traffic\"}\nLet me know if you need more.")
	if err != nil {
		t.Fatalf("embedded parse failed: %v", err)
	}
	if v.DosAttackProbability != 40 || v.Justification != "mixed traffic" {
		t.Errorf("unexpected verdict %+v", v)
	}

	// 3. Answers without any JSON object are rejected.
	if _, err = ParseVerdict("the traffic looks fine to me"); err == nil {
		t.Error("expected an error for a prose-only answer")
	}
}
