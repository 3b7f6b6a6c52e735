// Package recorder keeps a history of keeper decisions for later analysis.
package recorder

import (
	"context"
	"time"
)

// Run is one keeper tick.
type Run struct {
	Time      time.Time
	Decision  string // "drip", "below_threshold", "error"
	Pending   string // base units reported by the escrow
	Threshold string
	Sent      string // base units dripped, empty unless Decision is "drip"
	Error     string
}

// Recorder persists keeper runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
