package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybench/internal/domain"
)

func TestValueAt_EmptyVectorUsesDefault(t *testing.T) {
	assert.Equal(t, "fallback", valueAt(0, nil, "fallback"))
	assert.Equal(t, "fallback", valueAt(7, []string{}, "fallback"))
}

func TestValueAt_InRange(t *testing.T) {
	values := []string{"a", "b", "c"}
	assert.Equal(t, "a", valueAt(0, values, "x"))
	assert.Equal(t, "b", valueAt(1, values, "x"))
	assert.Equal(t, "c", valueAt(2, values, "x"))
}

func TestValueAt_PadsWithLastValue(t *testing.T) {
	values := []time.Duration{time.Second, 2 * time.Second}
	for i := 2; i < 10; i++ {
		assert.Equal(t, 2*time.Second, valueAt(i, values, 0), "index %d", i)
	}
}

func TestExpandToken_SubstitutesFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "secret-token")

	out, err := expandToken("SELECT '${QUERY_TOKEN}' AS tok, '${QUERY_TOKEN}' AS tok2")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'secret-token' AS tok, 'secret-token' AS tok2", out)
}

func TestExpandToken_MissingVariableWithPlaceholder(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	_, err := expandToken("SELECT '${QUERY_TOKEN}'")
	require.Error(t, err)

	var missing *domain.MissingTemplateVariableError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, TokenEnvVar, missing.Variable)
}

func TestExpandToken_MissingVariableWithoutPlaceholder(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	out, err := expandToken("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
}

func TestExpandQueryID(t *testing.T) {
	assert.Equal(t, "SELECT 42, 42", expandQueryID("SELECT ${QUERY_ID}, ${QUERY_ID}", 42))
	assert.Equal(t, "SELECT 1", expandQueryID("SELECT 1", 99))
}

func TestScriptRequest_ResolvesOverrides(t *testing.T) {
	exec := &ExecutionOptions{
		ScriptQueries:      []string{"SELECT 1", "SELECT 2", "SELECT 3"},
		ExecutionCases:     []domain.ExecutionCase{domain.CaseGenericQuery},
		ScriptQueryActions: []domain.QueryAction{domain.ActionExecute, domain.ActionExplain},
		Databases:          []string{"db0", "db1"},
		Users:              []string{"alice"},
		PoolIDs:            []string{"pool0", "pool1", "pool2"},
		Timeouts:           []time.Duration{time.Second},
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, err := exec.ScriptRequest(2, 5, start)
	require.NoError(t, err)

	assert.Equal(t, "SELECT 3", req.Query)
	assert.Equal(t, domain.ActionExplain, req.Action)
	assert.Equal(t, "db1", req.Database)
	assert.Equal(t, "alice", req.User)
	assert.Equal(t, "pool2", req.PoolID)
	assert.Equal(t, time.Second, req.Timeout)
	assert.Equal(t, domain.CaseGenericQuery, exec.ExecutionCaseAt(2))
}

func TestScriptRequest_TraceIDCarriesStartTimestamp(t *testing.T) {
	exec := &ExecutionOptions{
		ScriptQueries: []string{"SELECT 1"},
		TraceIDs:      []string{"bench"},
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	req, err := exec.ScriptRequest(0, 0, start)
	require.NoError(t, err)
	assert.Equal(t, "bench-"+start.Format(time.RFC3339Nano), req.TraceID)

	later, err := exec.ScriptRequest(0, 1, start.Add(time.Millisecond))
	require.NoError(t, err)
	assert.NotEqual(t, req.TraceID, later.TraceID)
}

func TestScriptRequest_ExpandsTemplates(t *testing.T) {
	t.Setenv(TokenEnvVar, "tok")

	exec := &ExecutionOptions{
		ScriptQueries: []string{"SELECT '${QUERY_TOKEN}', ${QUERY_ID}"},
		UseTemplates:  true,
	}

	req, err := exec.ScriptRequest(0, 7, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'tok', 7", req.Query)
}

func TestSchemeRequest_NoQueryIDExpansion(t *testing.T) {
	t.Setenv(TokenEnvVar, "tok")

	exec := &ExecutionOptions{
		SchemeQuery:  "CREATE TABLE t (s TEXT DEFAULT '${QUERY_TOKEN}'); -- ${QUERY_ID}",
		UseTemplates: true,
	}

	req, err := exec.SchemeRequest()
	require.NoError(t, err)
	assert.Contains(t, req.Query, "'tok'")
	assert.Contains(t, req.Query, "${QUERY_ID}")
	assert.Equal(t, DefaultTraceID, req.TraceID)
}

func TestHasResults(t *testing.T) {
	tests := []struct {
		name string
		exec ExecutionOptions
		want bool
	}{
		{
			name: "no queries",
			exec: ExecutionOptions{},
			want: false,
		},
		{
			name: "default case and action",
			exec: ExecutionOptions{ScriptQueries: []string{"SELECT 1"}},
			want: true,
		},
		{
			name: "explain only",
			exec: ExecutionOptions{
				ScriptQueries:      []string{"SELECT 1"},
				ScriptQueryActions: []domain.QueryAction{domain.ActionExplain},
			},
			want: false,
		},
		{
			name: "async only",
			exec: ExecutionOptions{
				ScriptQueries:  []string{"SELECT 1"},
				ExecutionCases: []domain.ExecutionCase{domain.CaseAsyncQuery},
			},
			want: false,
		},
		{
			name: "async plus sync execute",
			exec: ExecutionOptions{
				ScriptQueries:  []string{"SELECT 1", "SELECT 2"},
				ExecutionCases: []domain.ExecutionCase{domain.CaseAsyncQuery, domain.CaseGenericQuery},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.exec.HasResults())
		})
	}
}
