// Package config holds the execution and runner option surfaces, the
// per-query override resolution rules, and cross-option validation.
package config

import (
	"fmt"
	"io"
	"time"

	"querybench/internal/domain"
)

// DefaultTraceID prefixes trace ids when no per-query override is given.
const DefaultTraceID = "querybench"

// ExecutionOptions describes what to execute: the optional scheme
// query, the ordered script queries, and the per-query override
// vectors. Immutable once loaded from flags.
type ExecutionOptions struct {
	SchemeQuery   string
	ScriptQueries []string
	UseTemplates  bool

	// LoopCount 0 starts an unbounded loop stoppable only by an
	// external signal.
	LoopCount         int
	LoopDelay         time.Duration
	ContinueAfterFail bool
	ForgetExecution   bool

	// Index-aligned override vectors, resolved per §valueAt.
	ExecutionCases     []domain.ExecutionCase
	ScriptQueryActions []domain.QueryAction
	Databases          []string
	TraceIDs           []string
	PoolIDs            []string
	Users              []string
	Timeouts           []time.Duration

	ResultsRowsLimit int
}

// AsyncSettings bound and report asynchronous query dispatch.
type AsyncSettings struct {
	// InFlightLimit caps outstanding async queries; 0 means unlimited.
	InFlightLimit int64
	Verbose       domain.AsyncVerbose
}

// RunnerOptions configures the runner collaborator: output sinks,
// tracing, async settings, and backend connectivity.
type RunnerOptions struct {
	TraceScope   domain.TraceScope
	ResultOutput io.Writer
	ResultFormat domain.ResultFormat
	// PrettyResults indents JSON output, set when writing to a TTY.
	PrettyResults bool

	SchemeASTOutput  io.Writer
	ScriptASTOutput  io.Writer
	ScriptPlanOutput io.Writer

	// InProgressStatsPath receives periodic statistics for running
	// script queries. Never stdout.
	InProgressStatsPath string

	// ScriptCancelAfter requests cancellation of generic script
	// executions after the delay. Fire-and-forget.
	ScriptCancelAfter time.Duration

	// SameSession executes all synchronous requests on one database
	// session instead of a fresh one per request.
	SameSession bool

	Async AsyncSettings

	// MonitoringEnabled and QueryAPIEnabled turn the process into a
	// daemon serving HTTP endpoints after the batch completes.
	MonitoringEnabled bool
	QueryAPIEnabled   bool
	ListenAddr        string

	// Backend connectivity.
	DatabasePath   string
	DefaultCatalog string
	HistoryDBPath  string
	HistoryEnabled bool
}

// ExecutionCaseAt resolves the execution case for query index i.
func (o *ExecutionOptions) ExecutionCaseAt(i int) domain.ExecutionCase {
	return valueAt(i, o.ExecutionCases, domain.CaseGenericScript)
}

// ActionAt resolves the query action for query index i.
func (o *ExecutionOptions) ActionAt(i int) domain.QueryAction {
	return valueAt(i, o.ScriptQueryActions, domain.ActionExecute)
}

// HasExecutionCase reports whether any configured query resolves to
// the given case. With no overrides every query is a generic script.
func (o *ExecutionOptions) HasExecutionCase(c domain.ExecutionCase) bool {
	if len(o.ExecutionCases) == 0 {
		return c == domain.CaseGenericScript
	}
	for _, ec := range o.ExecutionCases {
		if ec == c {
			return true
		}
	}
	return false
}

// HasResults reports whether any query runs in a result-bearing mode:
// a synchronous case with the execute action.
func (o *ExecutionOptions) HasResults() bool {
	for i := range o.ScriptQueries {
		if o.ActionAt(i) != domain.ActionExecute {
			continue
		}
		if o.ExecutionCaseAt(i) != domain.CaseAsyncQuery {
			return true
		}
	}
	return false
}

// SchemeRequest materializes the one-shot scheme query request.
func (o *ExecutionOptions) SchemeRequest() (domain.Request, error) {
	sql := o.SchemeQuery
	if o.UseTemplates {
		expanded, err := expandToken(sql)
		if err != nil {
			return domain.Request{}, err
		}
		sql = expanded
	}

	return domain.Request{
		Query:   sql,
		Action:  domain.ActionExecute,
		TraceID: DefaultTraceID,
	}, nil
}

// ScriptRequest materializes the request for query index i at global
// iteration counter queryID. The trace id is suffixed with the
// iteration start timestamp so it stays unique across loop iterations.
func (o *ExecutionOptions) ScriptRequest(i, queryID int, startTime time.Time) (domain.Request, error) {
	sql := o.ScriptQueries[i]
	if o.UseTemplates {
		expanded, err := expandToken(sql)
		if err != nil {
			return domain.Request{}, err
		}
		sql = expandQueryID(expanded, queryID)
	}

	return domain.Request{
		Query:    sql,
		Action:   o.ActionAt(i),
		TraceID:  fmt.Sprintf("%s-%s", valueAt(i, o.TraceIDs, DefaultTraceID), startTime.UTC().Format(time.RFC3339Nano)),
		PoolID:   valueAt(i, o.PoolIDs, ""),
		User:     valueAt(i, o.Users, ""),
		Database: valueAt(i, o.Databases, ""),
		Timeout:  valueAt(i, o.Timeouts, 0),
	}, nil
}
