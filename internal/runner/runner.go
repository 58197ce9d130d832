// Package runner executes resolved query requests against the backend
// and collects their results.
package runner

import (
	"context"

	"querybench/internal/domain"
)

// ResultSet holds the structured output of one executed query.
type ResultSet struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Runner is the execution collaborator driven by the scheduler. A
// request either succeeds or returns an error; async dispatch reports
// outcomes only through Finalize-time accounting.
type Runner interface {
	// ExecuteSchemeQuery runs the one-shot scheme (DDL) query.
	ExecuteSchemeQuery(ctx context.Context, req domain.Request) error

	// ExecuteScript runs a generic script execution; its results stay
	// with the execution operation until fetched.
	ExecuteScript(ctx context.Context, req domain.Request) error
	// FetchScriptResults moves the latest script operation's results
	// into the result store.
	FetchScriptResults(ctx context.Context) error
	// ForgetExecutionOperation discards the latest script operation.
	ForgetExecutionOperation(ctx context.Context) error

	// ExecuteQuery runs a generic query; completion is the outcome.
	ExecuteQuery(ctx context.Context, req domain.Request) error

	// ExecuteLegacyScript runs a script through the legacy path.
	ExecuteLegacyScript(ctx context.Context, req domain.Request) error

	// WaitAsyncSlot blocks until the in-flight limit admits one more
	// async query. No-op when unlimited.
	WaitAsyncSlot(ctx context.Context) error
	// ExecuteQueryAsync dispatches without waiting for completion.
	ExecuteQueryAsync(ctx context.Context, req domain.Request)
	// AsyncInFlight returns the number of dispatched async queries
	// that have not reached a terminal state.
	AsyncInFlight() int64

	// Finalize blocks until all dispatched async work has reached a
	// terminal state and emits the async summary.
	Finalize(ctx context.Context) error

	// PrintScriptResults renders all collected results to the
	// configured result output.
	PrintScriptResults() error
}
