package model

import "context"

// FlowWriter defines a generic interface for persisting closed flow records.
type FlowWriter interface {
	// WriteFlows persists one batch of flow records.
	WriteFlows(ctx context.Context, flows []FlowRecord) error

	// Close flushes and releases the underlying store.
	Close() error
}
