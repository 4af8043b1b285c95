package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskdash/internal/config"
	"riskdash/internal/shared/testutil"
)

func newTestManager(t *testing.T) (*Manager, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), config.PathsConfig{})
	logger, _ := testutil.NewTestLogger(t)
	return NewManager(paths, logger), paths
}

func TestManager_SaveUpload(t *testing.T) {
	m, paths := newTestManager(t)

	path, err := m.SaveUpload("page_slot_0123456789abcdef.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.UploadsDir, "page_slot_0123456789abcdef.csv"), path)

	data, err := m.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	data, err = m.ReadFile("uploads/page_slot_0123456789abcdef.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	entries, err := os.ReadDir(paths.UploadsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, m.DeleteFile(path))
	assert.False(t, m.FileExists(path))
	require.NoError(t, m.DeleteFile(path))
}

func TestManager_SaveUploadRejectsPaths(t *testing.T) {
	m, _ := newTestManager(t)
	for _, name := range []string{"", "../escape.csv", "nested/file.csv"} {
		_, err := m.SaveUpload(name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestManager_Resolve(t *testing.T) {
	m, paths := newTestManager(t)

	tests := []struct {
		path string
		want string
	}{
		{"uploads/a.csv", filepath.Join(paths.UploadsDir, "a.csv")},
		{"exports/x.csv", filepath.Join(paths.ExportsDir, "x.csv")},
		{"logs/app.log", filepath.Join(paths.LogsDir, "app.log")},
		{"other.txt", filepath.Join(paths.DataDir, "other.txt")},
		{"misc/other.txt", filepath.Join(paths.DataDir, "misc", "other.txt")},
		{paths.UploadsDir, paths.UploadsDir},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve(tt.path))
		})
	}
}

func TestFindTabularFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_result.csv", "a_reference.CSV", "risk.xlsx", "notes.txt", "macro.xlsm"} {
		testutil.WriteFixture(t, dir, name, []byte("x"))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0755))

	found, err := FindTabularFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range found {
		names = append(names, f.Name)
		assert.Equal(t, int64(1), f.Size)
	}
	assert.Equal(t, []string{"a_reference.CSV", "b_result.csv", "macro.xlsm", "risk.xlsx"}, names)

	_, err = FindTabularFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
