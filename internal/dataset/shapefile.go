package dataset

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// ReadShapefile reads the requested columns from a shapefile's DBF attribute table.
func ReadShapefile(shpPath string, opts Options) ([]Column, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.TrimRight(f.String(), "\x00")
	}

	b, err := newTableBuilder(header, opts)
	if err != nil {
		return nil, err
	}

	record := make([]string, len(fields))
	for reader.Next() {
		for i := range fields {
			record[i] = reader.Attribute(i)
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}
	return b.columns(), nil
}
