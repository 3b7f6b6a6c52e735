package recorder

import "context"

// NoopRecorder is used when no SQLite path is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) RecordRun(context.Context, *Run) error      { return nil }
func (NoopRecorder) Recent(context.Context, int) ([]Run, error) { return nil, nil }
func (NoopRecorder) Close() error                               { return nil }
