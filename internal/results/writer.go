package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer appends JSON records to a log file, one object per line. Records are
// only ever appended; existing lines are never rewritten, so a crashed or
// interrupted run keeps everything recorded up to that point.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// NewWriter opens the append-only log at path, creating parent directories as
// needed.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Writer{f: f}, nil
}

// Append writes one record as a single JSON line.
func (w *Writer) Append(record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// NowISO returns the current UTC time in ISO-8601, the timestamp format used
// across all record logs.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
