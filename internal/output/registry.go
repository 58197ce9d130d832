// Package output owns the run's opened output files so they can be
// closed deterministically at exit.
package output

import (
	"fmt"
	"io"
	"os"
)

// Registry resolves output destinations and tracks the files it
// opened. "-" means stdout; an empty path means no destination.
// Lifetime is scoped to the whole run — Close releases every file.
type Registry struct {
	files []*os.File
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Writer returns the destination for path. Stdout is never tracked
// for closing.
func (r *Registry) Writer(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}
	if path == "-" {
		return os.Stdout, nil
	}

	f, err := os.Create(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("open output file %s: %w", path, err)
	}
	r.files = append(r.files, f)
	return f, nil
}

// Close closes every opened file, returning the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.files = nil
	return firstErr
}
