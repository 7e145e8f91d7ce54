// Package fetch resolves remote classification inputs (census extracts, TIGER shapefile
// archives, deprivation index workbooks) to local files.
package fetch

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures remote downloads.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit is requests per second per host.
	RateLimit float64
}

// Fetcher downloads a URL to a file path and returns the number of bytes written.
type Fetcher interface {
	DownloadToFile(ctx context.Context, rawURL, dest string) (int64, error)
}

// Client dispatches downloads by URL scheme.
type Client struct {
	http Fetcher
	ftp  Fetcher
}

// New creates a Client with HTTP and FTP fetchers built from opts.
func New(opts Options) *Client {
	return &Client{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
			RateLimit:  opts.RateLimit,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

// IsRemote reports whether src names an http(s) or ftp resource.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Download makes src available locally. Local paths (and file:// URLs) are returned as-is
// after an existence check; remote files are written into destDir under their base name.
func (c *Client) Download(ctx context.Context, src, destDir string) (string, error) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return localPath(src)
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "file":
		return localPath(u.Path)
	case "http", "https":
		f = c.http
	case "ftp":
		f = c.ftp
	default:
		return "", eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetch: create temp dir")
	}
	dest := filepath.Join(destDir, fileName(u))

	log := zap.L().With(zap.String("component", "fetch"), zap.String("url", src))
	log.Info("downloading", zap.String("dest", dest))

	start := time.Now()
	n, err := f.DownloadToFile(ctx, src, dest)
	if err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "fetch: download %s", src)
	}

	log.Info("download complete", zap.Int64("bytes", n), zap.Duration("elapsed", time.Since(start)))
	return dest, nil
}

func localPath(p string) (string, error) {
	if _, err := os.Stat(p); err != nil {
		return "", eris.Wrapf(err, "fetch: stat %s", p)
	}
	return p, nil
}

func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}
