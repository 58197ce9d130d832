// Package domain defines core types, interfaces, and errors for the
// workload driver.
package domain

import "time"

// ExecutionCase selects how a configured query is dispatched to the runner.
type ExecutionCase string

// Execution cases.
const (
	CaseSchemeQuery   ExecutionCase = "scheme"
	CaseGenericScript ExecutionCase = "script"
	CaseGenericQuery  ExecutionCase = "query"
	CaseLegacyScript  ExecutionCase = "legacy-script"
	CaseAsyncQuery    ExecutionCase = "async"
)

// QueryAction determines whether a query is executed or only explained.
type QueryAction string

// Query actions.
const (
	ActionExecute QueryAction = "execute"
	ActionExplain QueryAction = "explain"
)

// TraceScope selects which execution phases emit query tracing.
type TraceScope string

// Trace scopes.
const (
	TraceAll      TraceScope = "all"
	TraceScheme   TraceScope = "scheme"
	TraceScript   TraceScope = "script"
	TraceDisabled TraceScope = "disabled"
)

// CoversScheme reports whether scheme query execution is traced.
func (t TraceScope) CoversScheme() bool {
	return t == TraceAll || t == TraceScheme
}

// CoversScript reports whether script/query execution is traced.
func (t TraceScope) CoversScript() bool {
	return t == TraceAll || t == TraceScript
}

// AsyncVerbose selects how async query completions are reported.
type AsyncVerbose string

// Async verbosity modes.
const (
	VerboseEachQuery AsyncVerbose = "each-query"
	VerboseFinal     AsyncVerbose = "final"
)

// ResultFormat selects how collected results are rendered.
type ResultFormat string

// Result output formats.
const (
	FormatRows     ResultFormat = "rows"
	FormatFullJSON ResultFormat = "full-json"
)

// Request is one fully resolved query submission passed to the runner.
// It is built fresh per (job, loop-iteration) pair and discarded after
// dispatch.
type Request struct {
	Query    string
	Action   QueryAction
	TraceID  string
	PoolID   string
	User     string
	Database string
	Timeout  time.Duration
}
