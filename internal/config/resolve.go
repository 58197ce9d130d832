package config

import (
	"os"
	"strconv"
	"strings"

	"querybench/internal/domain"
)

// TokenEnvVar names the environment variable substituted for the
// ${QUERY_TOKEN} placeholder when templating is enabled.
const TokenEnvVar = "QUERY_TOKEN"

const (
	tokenPlaceholder   = "${" + TokenEnvVar + "}"
	queryIDPlaceholder = "${QUERY_ID}"
)

// valueAt resolves the effective per-query value from an index-aligned
// override vector. An empty vector means the global default; once the
// vector is exhausted its last element applies to all later indices.
func valueAt[T any](index int, values []T, defaultValue T) T {
	if len(values) == 0 {
		return defaultValue
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

// expandToken substitutes the ${QUERY_TOKEN} placeholder from the
// environment. The placeholder being present while the variable is
// unset is an error; an unset variable is otherwise harmless.
func expandToken(sql string) (string, error) {
	token := os.Getenv(TokenEnvVar)
	if token != "" {
		return strings.ReplaceAll(sql, tokenPlaceholder, token), nil
	}
	if strings.Contains(sql, tokenPlaceholder) {
		return "", &domain.MissingTemplateVariableError{Variable: TokenEnvVar}
	}
	return sql, nil
}

// expandQueryID substitutes the ${QUERY_ID} placeholder with the
// current iteration counter. Applied to script/query sources only —
// the scheme query runs once and has no iteration counter.
func expandQueryID(sql string, queryID int) string {
	return strings.ReplaceAll(sql, queryIDPlaceholder, strconv.Itoa(queryID))
}
