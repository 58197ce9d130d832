package cli

import (
	"fmt"
	"sort"
	"strings"

	"querybench/internal/domain"
)

// choices maps a closed set of flag spellings to behavior variants.
// Resolution happens once at configuration-load time; the scheduler
// never dispatches on strings.
type choices[T any] struct {
	byName map[string]T
}

func newChoices[T any](byName map[string]T) choices[T] {
	return choices[T]{byName: byName}
}

func (c choices[T]) parse(name string) (T, error) {
	v, ok := c.byName[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unsupported value %q (expected one of: %s)", name, c.usage())
	}
	return v, nil
}

func (c choices[T]) parseAll(names []string) ([]T, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(names))
	for _, name := range names {
		v, err := c.parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c choices[T]) usage() string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

var (
	executionCaseChoices = newChoices(map[string]domain.ExecutionCase{
		"script":        domain.CaseGenericScript,
		"query":         domain.CaseGenericQuery,
		"legacy-script": domain.CaseLegacyScript,
		"async":         domain.CaseAsyncQuery,
	})

	scriptActionChoices = newChoices(map[string]domain.QueryAction{
		"execute": domain.ActionExecute,
		"explain": domain.ActionExplain,
	})

	traceScopeChoices = newChoices(map[string]domain.TraceScope{
		"all":      domain.TraceAll,
		"scheme":   domain.TraceScheme,
		"script":   domain.TraceScript,
		"disabled": domain.TraceDisabled,
	})

	asyncVerboseChoices = newChoices(map[string]domain.AsyncVerbose{
		"each-query": domain.VerboseEachQuery,
		"final":      domain.VerboseFinal,
	})

	resultFormatChoices = newChoices(map[string]domain.ResultFormat{
		"rows":      domain.FormatRows,
		"full-json": domain.FormatFullJSON,
	})
)
