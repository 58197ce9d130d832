package domain

import "fmt"

// ConfigurationError indicates an invalid option combination. It is
// always fatal and is reported before any execution starts.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// SchemeError indicates a scheme (DDL) query failure. Scheme failures
// abort the whole run regardless of the continue-after-fail policy.
type SchemeError struct {
	Message string
	Cause   error
}

func (e *SchemeError) Error() string { return e.Message }

// Unwrap returns the underlying execution error.
func (e *SchemeError) Unwrap() error { return e.Cause }

// JobError indicates a synchronous job's execute/fetch/forget step
// failed. Fatal unless continue-after-fail is set.
type JobError struct {
	Message string
	Cause   error
}

func (e *JobError) Error() string { return e.Message }

// Unwrap returns the underlying execution error.
func (e *JobError) Unwrap() error { return e.Cause }

// FinalizationError indicates the runner's finalize barrier failed.
type FinalizationError struct {
	Message string
	Cause   error
}

func (e *FinalizationError) Error() string { return e.Message }

// Unwrap returns the underlying finalize error.
func (e *FinalizationError) Unwrap() error { return e.Cause }

// ResultPrintError indicates post-run result rendering failed. It is
// reported separately and never retroactively marks execution failed.
type ResultPrintError struct {
	Message string
	Cause   error
}

func (e *ResultPrintError) Error() string { return e.Message }

// Unwrap returns the underlying rendering error.
func (e *ResultPrintError) Unwrap() error { return e.Cause }

// MissingTemplateVariableError indicates a template placeholder could
// not be resolved from the environment.
type MissingTemplateVariableError struct {
	Variable string
}

func (e *MissingTemplateVariableError) Error() string {
	return fmt.Sprintf("failed to replace ${%s} template, please specify the %s environment variable", e.Variable, e.Variable)
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrScheme wraps a scheme query failure.
func ErrScheme(cause error, format string, args ...interface{}) *SchemeError {
	return &SchemeError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrJob wraps a synchronous job failure.
func ErrJob(cause error, format string, args ...interface{}) *JobError {
	return &JobError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrFinalization wraps a finalize failure.
func ErrFinalization(cause error) *FinalizationError {
	return &FinalizationError{Message: fmt.Sprintf("runner finalization failed: %v", cause), Cause: cause}
}

// ErrResultPrint wraps a result rendering failure.
func ErrResultPrint(cause error) *ResultPrintError {
	return &ResultPrintError{Message: fmt.Sprintf("failed to print script results: %v", cause), Cause: cause}
}
