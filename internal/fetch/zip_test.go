package fetch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "tl_2023_06_tract.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"tl_2023_06_tract.shp":      "shp",
		"tl_2023_06_tract.dbf":      "dbf",
		"docs/tl_2023_06_tract.xml": "<xml/>",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "docs", "tl_2023_06_tract.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<xml/>", string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../evil.txt": "x"})
	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractZIP(path, t.TempDir())
	assert.Error(t, err)
}

func TestFindFileByExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.SHP"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.shp"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dbf"), nil, 0o644))

	got, err := FindFileByExt(dir, ".shp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.SHP"), got)

	_, err = FindFileByExt(dir, ".prj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .prj file")
}

func TestUnpack(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"tl_2023_06_tract.shp": "shp",
		"tl_2023_06_tract.dbf": "dbf",
	})

	shp, err := Unpack(zipPath, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "tl_2023_06_tract.shp", filepath.Base(shp))

	plain := filepath.Join(t.TempDir(), "tracts.csv")
	got, err := Unpack(plain, ".shp")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}
