package runner

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybench/internal/config"
	"querybench/internal/domain"
)

func openTestRunner(t *testing.T, opts *config.RunnerOptions) *DuckDBRunner {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if opts == nil {
		opts = &config.RunnerOptions{}
	}
	r := NewDuckDBRunner(db, opts, discardLogger(), nil)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestDuckDBRunner_SchemeThenQuery(t *testing.T) {
	r := openTestRunner(t, nil)
	ctx := context.Background()

	scheme := domain.Request{
		Query:   "CREATE TABLE items (id INTEGER, name TEXT); INSERT INTO items VALUES (1, 'a'), (2, 'b');",
		Action:  domain.ActionExecute,
		TraceID: "test",
	}
	require.NoError(t, r.ExecuteSchemeQuery(ctx, scheme))

	query := domain.Request{
		Query:   "SELECT id, name FROM items ORDER BY id",
		Action:  domain.ActionExecute,
		TraceID: "test",
	}
	require.NoError(t, r.ExecuteQuery(ctx, query))

	require.Equal(t, 1, r.results.len())
	set := r.results.sets[0]
	assert.Equal(t, []string{"id", "name"}, set.Columns)
	assert.Equal(t, 2, set.RowCount)
}

func TestDuckDBRunner_ScriptFetchForgetCycle(t *testing.T) {
	r := openTestRunner(t, nil)
	ctx := context.Background()

	req := domain.Request{Query: "SELECT 42 AS answer", Action: domain.ActionExecute, TraceID: "test"}
	require.NoError(t, r.ExecuteScript(ctx, req))

	// Results stay with the operation until fetched.
	assert.Equal(t, 0, r.results.len())
	require.NoError(t, r.FetchScriptResults(ctx))
	assert.Equal(t, 1, r.results.len())

	require.NoError(t, r.ExecuteScript(ctx, req))
	require.NoError(t, r.ForgetExecutionOperation(ctx))
	err := r.ForgetExecutionOperation(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no script execution operation to forget")
}

func TestDuckDBRunner_FetchWithoutOperation(t *testing.T) {
	r := openTestRunner(t, nil)
	err := r.FetchScriptResults(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no script execution operation")
}

func TestDuckDBRunner_LegacyScriptKeepsLastResult(t *testing.T) {
	r := openTestRunner(t, nil)
	ctx := context.Background()

	req := domain.Request{
		Query:   "CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (7); SELECT v FROM t;",
		Action:  domain.ActionExecute,
		TraceID: "test",
	}
	require.NoError(t, r.ExecuteLegacyScript(ctx, req))

	require.Equal(t, 1, r.results.len())
	set := r.results.sets[0]
	assert.Equal(t, []string{"v"}, set.Columns)
	assert.Equal(t, 1, set.RowCount)
}

func TestDuckDBRunner_ExplainWritesPlanNotResults(t *testing.T) {
	var plan bytes.Buffer
	r := openTestRunner(t, &config.RunnerOptions{ScriptPlanOutput: &plan})
	ctx := context.Background()

	req := domain.Request{Query: "SELECT 1", Action: domain.ActionExplain, TraceID: "test"}
	require.NoError(t, r.ExecuteQuery(ctx, req))

	assert.Equal(t, 0, r.results.len())
	assert.NotEmpty(t, plan.String())
}

func TestDuckDBRunner_InvalidQueryFails(t *testing.T) {
	r := openTestRunner(t, nil)
	req := domain.Request{Query: "SELECT FROM WHERE", Action: domain.ActionExecute, TraceID: "test"}
	assert.Error(t, r.ExecuteQuery(context.Background(), req))
}

func TestDuckDBRunner_AsyncDispatchAndFinalize(t *testing.T) {
	r := openTestRunner(t, &config.RunnerOptions{
		Async: config.AsyncSettings{InFlightLimit: 2, Verbose: domain.VerboseFinal},
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.WaitAsyncSlot(ctx))
		r.ExecuteQueryAsync(ctx, domain.Request{Query: "SELECT 1", Action: domain.ActionExecute, TraceID: "test"})
	}
	require.NoError(t, r.Finalize(ctx))

	assert.Equal(t, int64(0), r.AsyncInFlight())
	succeeded, failed := r.async.stats()
	assert.Equal(t, int64(5), succeeded)
	assert.Equal(t, int64(0), failed)
}

func TestDuckDBRunner_SameSessionKeepsState(t *testing.T) {
	r := openTestRunner(t, &config.RunnerOptions{SameSession: true})
	ctx := context.Background()

	// Temp tables are session-scoped, so the second query only works on
	// the connection that created the table.
	create := domain.Request{Query: "CREATE TEMP TABLE session_t (v INTEGER)", Action: domain.ActionExecute, TraceID: "test"}
	require.NoError(t, r.ExecuteQuery(ctx, create))

	read := domain.Request{Query: "SELECT v FROM session_t", Action: domain.ActionExecute, TraceID: "test"}
	assert.NoError(t, r.ExecuteQuery(ctx, read))
}

func TestDuckDBRunner_AdhocQuery(t *testing.T) {
	r := openTestRunner(t, nil)

	set, err := r.Query(context.Background(), "SELECT 1 AS one", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, set.Columns)
	assert.Equal(t, 1, set.RowCount)
	// Ad-hoc queries never pollute the batch result store.
	assert.Equal(t, 0, r.results.len())
}

func TestDuckDBRunner_PrintScriptResults(t *testing.T) {
	var out bytes.Buffer
	r := openTestRunner(t, &config.RunnerOptions{
		ResultOutput: &out,
		ResultFormat: domain.FormatRows,
	})
	ctx := context.Background()

	req := domain.Request{Query: "SELECT 'hello' AS greeting", Action: domain.ActionExecute, TraceID: "test"}
	require.NoError(t, r.ExecuteQuery(ctx, req))
	require.NoError(t, r.PrintScriptResults())

	assert.Contains(t, out.String(), `"greeting":"hello"`)
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "single statement",
			script: "SELECT 1",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "multiple statements with trailing semicolon",
			script: "CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (1);",
			want:   []string{"CREATE TABLE t (v INTEGER)", "INSERT INTO t VALUES (1)"},
		},
		{
			name:   "semicolon inside string literal",
			script: "SELECT 'a;b'; SELECT 2",
			want:   []string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			name:   "semicolon inside quoted identifier",
			script: `SELECT 1 AS "a;b"; SELECT 2`,
			want:   []string{`SELECT 1 AS "a;b"`, "SELECT 2"},
		},
		{
			name:   "semicolon inside line comment",
			script: "SELECT 1 -- trailing; comment\n; SELECT 2",
			want:   []string{"SELECT 1 -- trailing; comment", "SELECT 2"},
		},
		{
			name:   "empty statements dropped",
			script: ";;  ;\nSELECT 1;",
			want:   []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStatements(tt.script))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"analytics"`, quoteIdent("analytics"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
