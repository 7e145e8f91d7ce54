package geo

import (
	"math"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/dataset"
)

// SRID is the spatial reference assigned to shapefile geometries (WGS 84 / NAD83 lon/lat).
const SRID = 4326

// Feature is one shapefile record with the attribute being mapped.
type Feature struct {
	ID       string
	Geometry geom.T
	// Value is NaN when the attribute is missing.
	Value float64
}

// ReadOptions selects the attributes read from the DBF table.
type ReadOptions struct {
	IDField    string
	ValueField string
}

// ReadFeatures reads every record with a usable geometry. Field names match case-insensitively.
func ReadFeatures(shpPath string, opts ReadOptions) ([]Feature, error) {
	if opts.ValueField == "" {
		return nil, eris.New("geo: value field is required")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	valueIdx := fieldIndex(reader.Fields(), opts.ValueField)
	if valueIdx < 0 {
		return nil, eris.Errorf("geo: field %q not found in %s", opts.ValueField, shpPath)
	}
	idIdx := -1
	if opts.IDField != "" {
		idIdx = fieldIndex(reader.Fields(), opts.IDField)
		if idIdx < 0 {
			return nil, eris.Errorf("geo: field %q not found in %s", opts.IDField, shpPath)
		}
	}

	var (
		features []Feature
		skipped  int
	)
	for reader.Next() {
		row, shape := reader.Shape()
		g := ShapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		raw := reader.Attribute(valueIdx)
		v, missing, err := dataset.ParseValue(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: record %d field %q", row, opts.ValueField)
		}
		if missing {
			v = math.NaN()
		}

		id := ""
		if idIdx >= 0 {
			id = reader.Attribute(idIdx)
		}
		features = append(features, Feature{ID: id, Geometry: g, Value: v})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read %s", shpPath)
	}

	zap.L().Debug("geo: read features",
		zap.String("path", shpPath),
		zap.Int("features", len(features)),
		zap.Int("skipped", skipped),
	)
	return features, nil
}

// Values returns the mapped attribute of every feature, in order.
func Values(features []Feature) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = f.Value
	}
	return out
}

func fieldIndex(fields []shp.Field, name string) int {
	for i, f := range fields {
		if strings.EqualFold(f.String(), name) {
			return i
		}
	}
	return -1
}
