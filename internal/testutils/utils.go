package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mholt/archiver/v3"
	"github.com/stretchr/testify/require"
)

func CreateTestFileWithData(t *testing.T, path, data string) {
	t.Helper()

	dir := filepath.Dir(path)
	err := os.MkdirAll(dir, 0755)
	require.NoError(t, err)
	err = os.WriteFile(path, []byte(data), 0644)
	require.NoError(t, err)
}

// WriteTree writes files, keyed by slash separated relative path, below dir.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		CreateTestFileWithData(t, filepath.Join(dir, filepath.FromSlash(name)), files[name])
	}
}

// CreateBundleDir writes files into a fresh must-gather style directory and
// returns its path. The bundle root is nested one level down, the way
// `oc adm must-gather` lays out its output.
func CreateBundleDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "must-gather.local.1234")
	root := filepath.Join(dir, "quay-io-openshift-release-dev-sha256-abc")
	require.NoError(t, os.MkdirAll(root, 0755))
	WriteTree(t, root, files)
	return dir
}

// CreateTarGz archives dir, keeping its base name as the top-level folder,
// and returns the archive path.
func CreateTarGz(t *testing.T, dir string) string {
	t.Helper()

	dest := filepath.Join(t.TempDir(), filepath.Base(dir)+".tar.gz")
	err := archiver.NewTarGz().Archive([]string{dir}, dest)
	require.NoError(t, err)
	return dest
}

func LogJSON(t *testing.T, v interface{}) {
	t.Helper()

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Log(v)
	} else {
		t.Log(string(b))
	}
}
