package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://www2.census.gov/data.csv"))
	assert.True(t, IsRemote("HTTP://example.com/x"))
	assert.True(t, IsRemote("ftp://ftp2.census.gov/geo/x.zip"))
	assert.False(t, IsRemote("data/tracts.csv"))
	assert.False(t, IsRemote("file:///tmp/tracts.csv"))
	assert.False(t, IsRemote(`C:\data\tracts.csv`))
}

func TestClientDownload_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))

	c := New(Options{})
	got, err := c.Download(context.Background(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = c.Download(context.Background(), "file://"+path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = c.Download(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), t.TempDir())
	assert.Error(t, err)
}

func TestClientDownload_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extracts/poverty.csv", r.URL.Path)
		w.Write([]byte("GEOID,rate\n1,2\n"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested")
	c := New(Options{Timeout: 5 * time.Second, RateLimit: 100})
	got, err := c.Download(context.Background(), srv.URL+"/extracts/poverty.csv?year=2022", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "poverty.csv"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "GEOID,rate\n1,2\n", string(data))
}

func TestClientDownload_FailureRemovesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := t.TempDir()
	c := New(Options{Timeout: 5 * time.Second, RateLimit: 100})
	_, err := c.Download(context.Background(), srv.URL+"/x.csv", dest)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dest, "x.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestClientDownload_UnsupportedScheme(t *testing.T) {
	_, err := New(Options{}).Download(context.Background(), "s3://bucket/key.csv", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported scheme "s3"`)
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"https://example.com/data/tracts.csv": "tracts.csv",
		"https://example.com/":                "download",
		"https://example.com":                 "download",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, fileName(u), raw)
	}
}
