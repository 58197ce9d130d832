package output

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_EmptyPathMeansNoDestination(t *testing.T) {
	r := NewRegistry()
	w, err := r.Writer("")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestRegistry_DashMeansStdout(t *testing.T) {
	r := NewRegistry()
	w, err := r.Writer("-")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	// Close must not touch stdout.
	assert.NoError(t, r.Close())
}

func TestRegistry_CreatesAndClosesFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	path := filepath.Join(dir, "results.json")
	w, err := r.Writer(path)
	require.NoError(t, err)

	fmt.Fprintln(w, "line")
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))

	// Close is idempotent once the registry is drained.
	assert.NoError(t, r.Close())
}

func TestRegistry_UnwritableDirectory(t *testing.T) {
	r := NewRegistry()
	_, err := r.Writer(filepath.Join(t.TempDir(), "missing", "out.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open output file")
}
