package domain

import (
	"context"
	"time"
)

// ExecutionStatus is the terminal outcome of one dispatched request.
type ExecutionStatus string

// Execution statuses.
const (
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// ExecutionRecord is one row of the execution history log: a single
// dispatched request and its outcome. Diagnostic only — the driver
// never reads history back to resume a run.
type ExecutionRecord struct {
	ID           string
	RunID        string
	Case         ExecutionCase
	Action       QueryAction
	TraceID      string
	Database     string
	PoolID       string
	User         string
	Status       ExecutionStatus
	ErrorMessage *string
	DurationMS   int64
	StartedAt    time.Time
}

// HistoryRepository persists execution records.
type HistoryRepository interface {
	Insert(ctx context.Context, rec *ExecutionRecord) error
	ListByRun(ctx context.Context, runID string) ([]ExecutionRecord, error)
	CountByStatus(ctx context.Context, runID string, status ExecutionStatus) (int64, error)
}
