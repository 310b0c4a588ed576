package model

import (
	"context"
)

// Analyzer defines the standard interface for an AI analyzer.
type Analyzer interface {
	// AnalyzeFlows receives a JSON-encoded flow payload and returns the raw
	// text answer from the AI model.
	AnalyzeFlows(ctx context.Context, payload string) (string, error)
}
