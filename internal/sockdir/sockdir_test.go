package sockdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

func TestEnsureCreatesMissingDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "socket-dir")

	err := Ensure(dir, true, false, -1, -1)
	require.NoError(t, err)

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestEnsureMissingDirNoCreate(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "missing")

	err := Ensure(dir, false, false, -1, -1)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestEnsureExistingFileNotDir(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	err := Ensure(file, true, false, -1, -1)
	require.Error(t, err)
	assert.Equal(t, apperr.PreconditionFailed, apperr.KindOf(err))
}

func TestEnsureExistingDirIsNoOp(t *testing.T) {
	dir := t.TempDir()
	err := Ensure(dir, true, false, -1, -1)
	assert.NoError(t, err)
}
