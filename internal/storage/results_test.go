package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStorage_SaveAndLoad(t *testing.T) {
	rs := NewResultStorage(filepath.Join(t.TempDir(), "nested", "results"))
	require.NoError(t, rs.Prepare())

	path, err := rs.SaveResult(7, "a0 = 1\n")
	require.NoError(t, err)
	assert.Equal(t, rs.PathFor(7), path)
	assert.Equal(t, "7.txt", filepath.Base(path))

	out, err := rs.LoadResult(7)
	require.NoError(t, err)
	assert.Equal(t, "a0 = 1\n", out)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not remain")
}

func TestResultStorage_Overwrite(t *testing.T) {
	rs := NewResultStorage(t.TempDir())
	_, err := rs.SaveResult(1, "first")
	require.NoError(t, err)
	_, err = rs.SaveResult(1, "second")
	require.NoError(t, err)

	out, err := rs.LoadResult(1)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestResultStorage_LoadMissing(t *testing.T) {
	rs := NewResultStorage(t.TempDir())
	_, err := rs.LoadResult(3)
	assert.Error(t, err)
}

func TestResultStorage_PrepareOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, NewResultStorage(file).Prepare())
}
