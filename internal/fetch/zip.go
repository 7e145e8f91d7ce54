package fetch

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to destDir and returns their paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Zip slip.
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}

// FindFileByExt walks dir and returns the first file (in lexical order) with the given
// extension, compared case-insensitively.
func FindFileByExt(dir, ext string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: walk %s", dir)
	}
	if len(matches) == 0 {
		return "", eris.Errorf("zip: no %s file in %s", ext, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Unpack extracts a .zip archive into a sibling directory and returns the first file with
// the wanted extension. Non-archive paths are returned unchanged.
func Unpack(path, ext string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return path, nil
	}
	dir := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := ExtractZIP(path, dir); err != nil {
		return "", err
	}
	return FindFileByExt(dir, ext)
}
