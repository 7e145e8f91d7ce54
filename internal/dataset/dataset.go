// Package dataset reads numeric attribute columns from CSV, XLSX and shapefile inputs.
package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Column is one numeric variable. Missing cells are NaN in Values and counted in Missing.
type Column struct {
	Name    string    `json:"name"`
	Values  []float64 `json:"values"`
	Keys    []string  `json:"keys,omitempty"`
	Missing int       `json:"missing"`
}

// Options selects what to read from a table.
type Options struct {
	Columns   []string // numeric columns, matched case-insensitively
	KeyColumn string   // optional row identifier column
	Sheet     string   // XLSX sheet name; first sheet when empty
	Delimiter rune     // CSV delimiter; ',' by default, '\t' for .tsv
	Charset   string   // input encoding for CSV, e.g. "latin1"; UTF-8 when empty
}

// Open reads the requested columns from a local file, choosing the parser by extension:
// .csv, .tsv, .txt (optionally .gz compressed), .xlsx, or .shp (attributes from the .dbf).
func Open(ctx context.Context, path string, opts Options) ([]Column, error) {
	if len(opts.Columns) == 0 {
		return nil, eris.New("dataset: no columns requested")
	}

	ext := strings.ToLower(filepath.Ext(path))
	compressed := ext == ".gz"
	if compressed {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}

	log := zap.L().With(zap.String("component", "dataset"), zap.String("path", path))

	var cols []Column
	var err error
	switch ext {
	case ".csv", ".tsv", ".txt":
		if ext == ".tsv" && opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		cols, err = openCSV(ctx, path, compressed, opts)
	case ".xlsx":
		if compressed {
			return nil, eris.Errorf("dataset: compressed %s is not supported", ext)
		}
		cols, err = ReadXLSX(path, opts)
	case ".shp", ".dbf":
		if compressed {
			return nil, eris.Errorf("dataset: compressed %s is not supported", ext)
		}
		cols, err = ReadShapefile(strings.TrimSuffix(path, filepath.Ext(path))+".shp", opts)
	default:
		return nil, eris.Errorf("dataset: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	for _, c := range cols {
		log.Debug("column loaded",
			zap.String("column", c.Name),
			zap.Int("rows", len(c.Values)),
			zap.Int("missing", c.Missing),
		)
	}
	return cols, nil
}

func openCSV(ctx context.Context, path string, compressed bool, opts Options) ([]Column, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	if !compressed {
		return ReadCSV(ctx, f, opts)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: gzip %s", path)
	}
	defer gz.Close() //nolint:errcheck
	return ReadCSV(ctx, gz, opts)
}

// missingTokens are cell values treated as missing rather than as parse errors.
var missingTokens = map[string]bool{
	"":      true,
	"na":    true,
	"n/a":   true,
	"nan":   true,
	"null":  true,
	"none":  true,
	"-":     true,
	"(x)":   true,
	"**":    true,
	"***":   true,
	"*****": true,
}

// ParseValue parses a numeric cell. Missing markers return NaN with missing set; thousands
// separators, a leading currency sign and a trailing percent sign are stripped.
func ParseValue(raw string) (v float64, missing bool, err error) {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), true, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, eris.Wrapf(err, "parse %q", raw)
	}
	return v, false, nil
}

// tableBuilder accumulates requested columns from rows of string cells.
type tableBuilder struct {
	idx    []int
	keyIdx int
	cols   []Column
	row    int
}

func newTableBuilder(header []string, opts Options) (*tableBuilder, error) {
	if len(opts.Columns) == 0 {
		return nil, eris.New("dataset: no columns requested")
	}
	lookup := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimRight(h, "\x00"), "\ufeff")))
		if _, dup := lookup[name]; !dup {
			lookup[name] = i
		}
	}

	b := &tableBuilder{keyIdx: -1}
	for _, name := range opts.Columns {
		i, ok := lookup[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, eris.Errorf("dataset: column %q not found", name)
		}
		b.idx = append(b.idx, i)
		b.cols = append(b.cols, Column{Name: name})
	}
	if opts.KeyColumn != "" {
		i, ok := lookup[strings.ToLower(strings.TrimSpace(opts.KeyColumn))]
		if !ok {
			return nil, eris.Errorf("dataset: key column %q not found", opts.KeyColumn)
		}
		b.keyIdx = i
	}
	return b, nil
}

// add appends one data row. Short rows read their absent cells as missing.
func (b *tableBuilder) add(record []string) error {
	b.row++
	for c, i := range b.idx {
		var cell string
		if i < len(record) {
			cell = record[i]
		}
		v, missing, err := ParseValue(cell)
		if err != nil {
			return eris.Wrapf(err, "dataset: row %d column %q", b.row, b.cols[c].Name)
		}
		if missing {
			b.cols[c].Missing++
		}
		b.cols[c].Values = append(b.cols[c].Values, v)
		if b.keyIdx >= 0 {
			var key string
			if b.keyIdx < len(record) {
				key = strings.TrimSpace(strings.TrimRight(record[b.keyIdx], "\x00"))
			}
			b.cols[c].Keys = append(b.cols[c].Keys, key)
		}
	}
	return nil
}

func (b *tableBuilder) columns() []Column {
	return b.cols
}
