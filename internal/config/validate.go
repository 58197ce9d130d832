package config

import (
	"fmt"

	"querybench/internal/domain"
)

// Validate checks the full configuration before any execution starts.
// It is a pure function of the options: it either accepts the
// configuration, possibly returning non-fatal advisory warnings, or
// rejects it with a ConfigurationError.
//
// Check order by convention: structural, scheme-specific,
// script/case-specific, concurrency-specific, tracing-specific. The
// checks are independent predicates, so the order does not affect the
// outcome.
func (o *ExecutionOptions) Validate(r *RunnerOptions) ([]string, error) {
	if o.SchemeQuery == "" && len(o.ScriptQueries) == 0 && !r.MonitoringEnabled && !r.QueryAPIEnabled {
		return nil, domain.ErrConfiguration("nothing to execute and not running as daemon")
	}

	if err := o.validateOverrideSizes(); err != nil {
		return nil, err
	}
	if err := o.validateSchemeOptions(r); err != nil {
		return nil, err
	}
	if err := o.validateScriptOptions(r); err != nil {
		return nil, err
	}
	warnings, err := o.validateAsyncOptions(r.Async)
	if err != nil {
		return nil, err
	}
	if err := o.validateTraceScope(r.TraceScope); err != nil {
		return nil, err
	}
	return warnings, nil
}

// validateOverrideSizes rejects override vectors longer than the
// query list.
func (o *ExecutionOptions) validateOverrideSizes() error {
	n := len(o.ScriptQueries)
	check := func(size int, name string) error {
		if size > n {
			return domain.ErrConfiguration("too many %s: specified %d, when number of queries is %d", name, size, n)
		}
		return nil
	}

	if err := check(len(o.ExecutionCases), "execution cases"); err != nil {
		return err
	}
	if err := check(len(o.ScriptQueryActions), "script query actions"); err != nil {
		return err
	}
	if err := check(len(o.Databases), "databases"); err != nil {
		return err
	}
	if err := check(len(o.TraceIDs), "trace ids"); err != nil {
		return err
	}
	if err := check(len(o.PoolIDs), "pool ids"); err != nil {
		return err
	}
	if err := check(len(o.Users), "users"); err != nil {
		return err
	}
	return check(len(o.Timeouts), "timeouts")
}

func (o *ExecutionOptions) validateSchemeOptions(r *RunnerOptions) error {
	if o.SchemeQuery != "" {
		return nil
	}
	if r.SchemeASTOutput != nil {
		return domain.ErrConfiguration("scheme query AST output can not be used without scheme query")
	}
	return nil
}

func (o *ExecutionOptions) validateScriptOptions(r *RunnerOptions) error {
	if r.SameSession && o.HasExecutionCase(domain.CaseAsyncQuery) {
		return domain.ErrConfiguration("same session can not be used with async queries")
	}

	// Generic script specific
	if o.HasExecutionCase(domain.CaseGenericScript) {
		return nil
	}
	if o.ForgetExecution {
		return domain.ErrConfiguration("forget execution can not be used without generic script queries")
	}
	if r.ScriptCancelAfter > 0 {
		return domain.ErrConfiguration("cancel after can not be used without generic script queries")
	}

	// Script/query specific
	if o.HasExecutionCase(domain.CaseGenericQuery) {
		return nil
	}
	if o.ResultsRowsLimit > 0 {
		return domain.ErrConfiguration("result rows limit can not be used without script queries")
	}
	if r.InProgressStatsPath != "" {
		return domain.ErrConfiguration("script statistics can not be used without script queries")
	}

	// Common specific
	if o.HasExecutionCase(domain.CaseLegacyScript) {
		return nil
	}
	if r.ScriptASTOutput != nil {
		return domain.ErrConfiguration("script query AST output can not be used without script queries")
	}
	if r.ScriptPlanOutput != nil {
		return domain.ErrConfiguration("script query plan output can not be used without script queries")
	}
	if r.SameSession {
		return domain.ErrConfiguration("same session can not be used without script queries")
	}
	return nil
}

func (o *ExecutionOptions) validateAsyncOptions(async AsyncSettings) ([]string, error) {
	if async.InFlightLimit > 0 && !o.HasExecutionCase(domain.CaseAsyncQuery) {
		return nil, domain.ErrConfiguration("in flight limit can not be used without async queries")
	}

	var warnings []string
	if o.LoopCount > 0 && async.InFlightLimit > 0 {
		maxQueries := int64(len(o.ScriptQueries)) * int64(o.LoopCount)
		if async.InFlightLimit > maxQueries {
			warnings = append(warnings, fmt.Sprintf("in flight limit is %d, that is larger than max possible number of queries %d", async.InFlightLimit, maxQueries))
		}
	}
	return warnings, nil
}

// validateTraceScope requires the traced phase to actually be present.
func (o *ExecutionOptions) validateTraceScope(scope domain.TraceScope) error {
	switch scope {
	case domain.TraceScheme:
		if o.SchemeQuery == "" {
			return domain.ErrConfiguration("trace scope scheme can not be used without scheme query")
		}
	case domain.TraceScript:
		if len(o.ScriptQueries) == 0 {
			return domain.ErrConfiguration("trace scope script can not be used without script queries")
		}
	case domain.TraceAll:
		if o.SchemeQuery == "" && len(o.ScriptQueries) == 0 {
			return domain.ErrConfiguration("trace scope all can not be used without any queries")
		}
	case domain.TraceDisabled, "":
	}
	return nil
}
