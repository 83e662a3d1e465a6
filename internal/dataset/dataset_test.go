package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateRejectsInvalidAndDuplicateNames(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = r.Create("valid_name-1")
	require.NoError(t, err)

	_, err = r.Create("valid_name-1")
	assert.Error(t, err)

	_, err = r.Create("not a valid name!")
	assert.Error(t, err)
}

func TestRegistry_CreateBuildsFullSubstructure(t *testing.T) {
	base := t.TempDir()
	r, err := NewRegistry(base)
	require.NoError(t, err)

	ds, err := r.Create("mydataset")
	require.NoError(t, err)

	for _, sub := range []string{"raw", filepath.Join("processed", "train"), filepath.Join("processed", "val"), filepath.Join("processed", "test")} {
		info, err := os.Stat(filepath.Join(ds.Root, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestRegistry_DeleteRefusedWhileActiveWriters(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	ds, err := r.Create("locked")
	require.NoError(t, err)

	rec := NewRecorder()
	require.NoError(t, rec.Start("1", "SN001", ds))

	err = r.Delete("locked")
	assert.Error(t, err)

	rec.Stop("1", "SN001")
	require.Eventually(t, func() bool { return ds.ActiveWriters() == 0 }, 2_000_000_000, 10_000_000)

	assert.NoError(t, r.Delete("locked"))
}

func TestRegistry_RenameIsRemoveThenAdd(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = r.Create("old-name")
	require.NoError(t, err)

	require.NoError(t, r.Rename("old-name", "new-name"))

	_, ok := r.Get("old-name")
	assert.False(t, ok)
	ds, ok := r.Get("new-name")
	require.True(t, ok)
	assert.Equal(t, "new-name", ds.Name)
}

func TestRegistry_RenameRefusedWhileActiveWriters(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	ds, err := r.Create("busy")
	require.NoError(t, err)

	rec := NewRecorder()
	require.NoError(t, rec.Start("1", "SN001", ds))
	defer rec.Stop("1", "SN001")

	err = r.Rename("busy", "busy2")
	assert.Error(t, err)
}

func TestRegistry_ScanReconstructsExistingDatasets(t *testing.T) {
	base := t.TempDir()
	r1, err := NewRegistry(base)
	require.NoError(t, err)
	_, err = r1.Create("preexisting")
	require.NoError(t, err)

	r2, err := NewRegistry(base)
	require.NoError(t, err)

	_, ok := r2.Get("preexisting")
	assert.True(t, ok)
}
