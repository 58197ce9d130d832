package runner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"querybench/internal/config"
	"querybench/internal/domain"
)

// DuckDBRunner executes resolved requests against a DuckDB database
// through database/sql. Synchronous requests run on the caller's
// goroutine; async requests run on background goroutines tracked by
// the in-flight accounting in asyncTracker.
type DuckDBRunner struct {
	opts    *config.RunnerOptions
	db      *sql.DB
	log     *slog.Logger
	history domain.HistoryRepository // nil disables history logging
	runID   string

	async   *asyncTracker
	results *resultStore
	ops     *operationStore

	sessionMu sync.Mutex
	session   *sql.Conn // same-session mode only, lazily opened

	statsMu   sync.Mutex
	statsFile *os.File
}

var _ Runner = (*DuckDBRunner)(nil)

// NewDuckDBRunner creates a runner over an open DuckDB handle.
// history may be nil to disable the execution history log.
func NewDuckDBRunner(db *sql.DB, opts *config.RunnerOptions, log *slog.Logger, history domain.HistoryRepository) *DuckDBRunner {
	return &DuckDBRunner{
		opts:    opts,
		db:      db,
		log:     log,
		history: history,
		runID:   uuid.NewString(),
		async:   newAsyncTracker(opts.Async.InFlightLimit, opts.Async.Verbose, log),
		results: newResultStore(0),
		ops:     newOperationStore(),
	}
}

// SetResultsRowsLimit caps the number of rows kept per result set.
func (r *DuckDBRunner) SetResultsRowsLimit(limit int) {
	r.results.rowsLimit = limit
}

// RunID identifies this runner instance in the history log.
func (r *DuckDBRunner) RunID() string { return r.runID }

// ExecuteSchemeQuery runs the one-shot scheme (DDL) query. Statements
// are split on semicolons so a whole schema file can run at once.
func (r *DuckDBRunner) ExecuteSchemeQuery(ctx context.Context, req domain.Request) error {
	if r.opts.TraceScope.CoversScheme() {
		r.log.Info("tracing scheme query", "trace_id", req.TraceID, "sql", req.Query)
	}
	r.captureAST(ctx, req.Query, r.opts.SchemeASTOutput)

	start := time.Now()
	err := r.execStatements(ctx, req)
	r.recordHistory(ctx, req, domain.CaseSchemeQuery, start, err)
	if err != nil {
		return fmt.Errorf("scheme query: %w", err)
	}
	return nil
}

// ExecuteScript runs a generic script execution. On success the
// results are held with the execution operation until fetched.
func (r *DuckDBRunner) ExecuteScript(ctx context.Context, req domain.Request) error {
	if r.opts.ScriptCancelAfter > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		timer := time.AfterFunc(r.opts.ScriptCancelAfter, cancel)
		defer timer.Stop()
		defer cancel()
	}

	stop := r.startStatsHeartbeat(req.TraceID)
	defer stop()

	start := time.Now()
	set, err := r.execute(ctx, req, true)
	r.recordHistory(ctx, req, domain.CaseGenericScript, start, err)
	if err != nil {
		return fmt.Errorf("script execution: %w", err)
	}

	var sets []*ResultSet
	if req.Action == domain.ActionExecute && set != nil {
		sets = append(sets, set)
	}
	r.ops.create(req.TraceID, sets)
	return nil
}

// FetchScriptResults moves the latest script operation's results into
// the result store.
func (r *DuckDBRunner) FetchScriptResults(_ context.Context) error {
	op, ok := r.ops.takeLatest()
	if !ok {
		return fmt.Errorf("no script execution operation to fetch results from")
	}
	for _, set := range op.Results {
		r.results.add(set)
	}
	return nil
}

// ForgetExecutionOperation discards the latest script operation.
func (r *DuckDBRunner) ForgetExecutionOperation(_ context.Context) error {
	if !r.ops.forgetLatest() {
		return fmt.Errorf("no script execution operation to forget")
	}
	return nil
}

// ExecuteQuery runs a generic query; results go straight to the
// result store.
func (r *DuckDBRunner) ExecuteQuery(ctx context.Context, req domain.Request) error {
	start := time.Now()
	set, err := r.execute(ctx, req, true)
	r.recordHistory(ctx, req, domain.CaseGenericQuery, start, err)
	if err != nil {
		return fmt.Errorf("query execution: %w", err)
	}
	if req.Action == domain.ActionExecute && set != nil {
		r.results.add(set)
	}
	return nil
}

// ExecuteLegacyScript runs a multi-statement script on a single
// connection, statement by statement, keeping the last result set.
// This is the compatibility path for scripts written against the old
// batch executor.
func (r *DuckDBRunner) ExecuteLegacyScript(ctx context.Context, req domain.Request) error {
	start := time.Now()
	set, err := r.executeLegacy(ctx, req)
	r.recordHistory(ctx, req, domain.CaseLegacyScript, start, err)
	if err != nil {
		return fmt.Errorf("legacy script execution: %w", err)
	}
	if req.Action == domain.ActionExecute && set != nil {
		r.results.add(set)
	}
	return nil
}

// WaitAsyncSlot blocks until the in-flight limit admits one more
// async dispatch.
func (r *DuckDBRunner) WaitAsyncSlot(ctx context.Context) error {
	return r.async.acquire(ctx)
}

// ExecuteQueryAsync dispatches a query without waiting for completion.
// When an in-flight limit is configured the caller must have reserved
// a slot with WaitAsyncSlot first.
func (r *DuckDBRunner) ExecuteQueryAsync(ctx context.Context, req domain.Request) {
	r.async.launch(req.TraceID, func() error {
		start := time.Now()
		_, err := r.execute(ctx, req, true)
		r.recordHistory(ctx, req, domain.CaseAsyncQuery, start, err)
		return err
	})
}

// AsyncInFlight returns the number of dispatched async queries not yet
// in a terminal state.
func (r *DuckDBRunner) AsyncInFlight() int64 {
	return r.async.inFlight.Load()
}

// Finalize drains all outstanding async work and closes the stats
// sink. It is the synchronization barrier at the end of a run.
func (r *DuckDBRunner) Finalize(_ context.Context) error {
	r.async.wait()

	succeeded, failed := r.async.stats()
	if succeeded+failed > 0 {
		r.log.Info("async queries finished", "succeeded", succeeded, "failed", failed)
	}

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if r.statsFile != nil {
		f := r.statsFile
		r.statsFile = nil
		if err := f.Close(); err != nil {
			return fmt.Errorf("close statistics file: %w", err)
		}
	}
	return nil
}

// PrintScriptResults renders all collected result sets.
func (r *DuckDBRunner) PrintScriptResults() error {
	return r.results.print(r.opts.ResultOutput, r.opts.ResultFormat, r.opts.PrettyResults)
}

// Query executes an ad-hoc query outside the batch, for the query API
// endpoint.
func (r *DuckDBRunner) Query(ctx context.Context, sqlText, database string) (*ResultSet, error) {
	req := domain.Request{
		Query:    sqlText,
		Action:   domain.ActionExecute,
		TraceID:  DefaultAdhocTraceID,
		Database: database,
	}
	return r.execute(ctx, req, false)
}

// DefaultAdhocTraceID marks query API executions in logs and history.
const DefaultAdhocTraceID = "querybench-adhoc"

// Close releases the same-session connection, if any.
func (r *DuckDBRunner) Close() error {
	r.sessionMu.Lock()
	defer r.sessionMu.Unlock()
	if r.session != nil {
		s := r.session
		r.session = nil
		return s.Close()
	}
	return nil
}

// execute runs one request and returns its result set (nil for the
// explain action, whose output goes to the plan sink instead).
func (r *DuckDBRunner) execute(ctx context.Context, req domain.Request, script bool) (*ResultSet, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if script && r.opts.TraceScope.CoversScript() {
		r.log.Info("tracing query", "trace_id", req.TraceID, "user", req.User, "pool_id", req.PoolID, "sql", req.Query)
	}
	if script {
		r.captureAST(ctx, req.Query, r.opts.ScriptASTOutput)
	}

	conn, release, err := r.conn(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.Action == domain.ActionExplain {
		plan, err := r.explain(ctx, conn, req.Query)
		if err != nil {
			return nil, err
		}
		r.writePlan(req.TraceID, plan)
		return nil, nil
	}

	if script && r.opts.ScriptPlanOutput != nil {
		if plan, err := r.explain(ctx, conn, req.Query); err == nil {
			r.writePlan(req.TraceID, plan)
		}
	}

	rows, err := conn.QueryContext(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return scanRows(rows)
}

// executeLegacy splits the script into statements and runs them in
// order on one connection, returning the last statement's results.
func (r *DuckDBRunner) executeLegacy(ctx context.Context, req domain.Request) (*ResultSet, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if r.opts.TraceScope.CoversScript() {
		r.log.Info("tracing legacy script", "trace_id", req.TraceID, "sql", req.Query)
	}
	r.captureAST(ctx, req.Query, r.opts.ScriptASTOutput)

	conn, release, err := r.conn(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	defer release()

	var last *ResultSet
	for _, stmt := range splitStatements(req.Query) {
		if req.Action == domain.ActionExplain {
			plan, err := r.explain(ctx, conn, stmt)
			if err != nil {
				return nil, err
			}
			r.writePlan(req.TraceID, plan)
			continue
		}
		rows, err := conn.QueryContext(ctx, stmt)
		if err != nil {
			return nil, err
		}
		set, err := scanRows(rows)
		rows.Close() //nolint:errcheck,gosec
		if err != nil {
			return nil, err
		}
		last = set
	}
	return last, nil
}

// execStatements runs every statement of a scheme query with Exec.
func (r *DuckDBRunner) execStatements(ctx context.Context, req domain.Request) error {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	conn, release, err := r.conn(ctx, req.Database)
	if err != nil {
		return err
	}
	defer release()

	for _, stmt := range splitStatements(req.Query) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// conn returns the connection to execute on. In same-session mode a
// single lazily-opened connection is reused and released at Close;
// otherwise a fresh connection is returned with its release func.
func (r *DuckDBRunner) conn(ctx context.Context, database string) (*sql.Conn, func(), error) {
	if r.opts.SameSession {
		r.sessionMu.Lock()
		defer r.sessionMu.Unlock()
		if r.session == nil {
			c, err := r.db.Conn(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("open session: %w", err)
			}
			r.session = c
		}
		if err := r.useCatalog(ctx, r.session, database); err != nil {
			return nil, nil, err
		}
		return r.session, func() {}, nil
	}

	c, err := r.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open connection: %w", err)
	}
	if err := r.useCatalog(ctx, c, database); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// useCatalog switches the connection's default catalog when the
// request names a database, falling back to the configured default.
func (r *DuckDBRunner) useCatalog(ctx context.Context, conn *sql.Conn, database string) error {
	name := database
	if name == "" {
		name = r.opts.DefaultCatalog
	}
	if name == "" {
		return nil
	}
	if _, err := conn.ExecContext(ctx, "USE "+quoteIdent(name)); err != nil {
		return fmt.Errorf("use database %s: %w", name, err)
	}
	return nil
}

// explain collects the textual query plan.
func (r *DuckDBRunner) explain(ctx context.Context, conn *sql.Conn, sqlText string) (string, error) {
	rows, err := conn.QueryContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	set, err := scanRows(rows)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}

	var b strings.Builder
	for _, row := range set.Rows {
		for _, v := range row {
			fmt.Fprintln(&b, v)
		}
	}
	return b.String(), nil
}

// captureAST serializes the query's AST to the sink. Best effort —
// the backend can only serialize SELECT statements, so failures are
// logged and skipped.
func (r *DuckDBRunner) captureAST(ctx context.Context, sqlText string, out io.Writer) {
	if out == nil {
		return
	}
	var astJSON string
	if err := r.db.QueryRowContext(ctx, "SELECT json_serialize_sql($1)", sqlText).Scan(&astJSON); err != nil {
		r.log.Warn("AST serialization skipped", "error", err)
		return
	}
	fmt.Fprintln(out, astJSON)
}

func (r *DuckDBRunner) writePlan(traceID, plan string) {
	if r.opts.ScriptPlanOutput != nil {
		fmt.Fprintln(r.opts.ScriptPlanOutput, plan)
		return
	}
	r.log.Info("query plan", "trace_id", traceID, "plan", plan)
}

// startStatsHeartbeat appends periodic in-progress statistics for the
// running script to the configured file. Returns a stop func.
func (r *DuckDBRunner) startStatsHeartbeat(traceID string) func() {
	if r.opts.InProgressStatsPath == "" {
		return func() {}
	}

	r.statsMu.Lock()
	if r.statsFile == nil {
		f, err := os.OpenFile(r.opts.InProgressStatsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
		if err != nil {
			r.statsMu.Unlock()
			r.log.Warn("cannot open statistics file", "path", r.opts.InProgressStatsPath, "error", err)
			return func() {}
		}
		r.statsFile = f
	}
	r.statsMu.Unlock()

	done := make(chan struct{})
	start := time.Now()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				r.statsMu.Lock()
				if r.statsFile != nil {
					entry := map[string]interface{}{
						"trace_id":   traceID,
						"elapsed_ms": t.Sub(start).Milliseconds(),
						"status":     "running",
					}
					_ = json.NewEncoder(r.statsFile).Encode(entry)
				}
				r.statsMu.Unlock()
			}
		}
	}()

	return func() { close(done) }
}

// recordHistory appends one execution record. Best effort — a history
// failure never fails the execution it describes.
func (r *DuckDBRunner) recordHistory(ctx context.Context, req domain.Request, c domain.ExecutionCase, start time.Time, execErr error) {
	if r.history == nil {
		return
	}

	status := domain.ExecutionSucceeded
	var errMsg *string
	if execErr != nil {
		status = domain.ExecutionFailed
		msg := execErr.Error()
		errMsg = &msg
	}

	rec := &domain.ExecutionRecord{
		RunID:        r.runID,
		Case:         c,
		Action:       req.Action,
		TraceID:      req.TraceID,
		Database:     req.Database,
		PoolID:       req.PoolID,
		User:         req.User,
		Status:       status,
		ErrorMessage: errMsg,
		DurationMS:   time.Since(start).Milliseconds(),
		StartedAt:    start,
	}
	if err := r.history.Insert(context.WithoutCancel(ctx), rec); err != nil {
		r.log.Warn("history insert failed", "error", err)
	}
}

// splitStatements breaks a SQL script on top-level semicolons,
// respecting quotes and line comments.
func splitStatements(script string) []string {
	var stmts []string
	var b strings.Builder

	inSingle, inDouble, inComment := false, false, false
	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
			}
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		case ch == '-' && i+1 < len(script) && script[i+1] == '-':
			inComment = true
		case ch == ';':
			if s := strings.TrimSpace(b.String()); s != "" {
				stmts = append(stmts, s)
			}
			b.Reset()
			continue
		}
		b.WriteByte(ch)
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
