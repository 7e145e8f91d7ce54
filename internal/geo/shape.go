package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ShapeToGeom converts a go-shp shape to a go-geom geometry with SRID 4326. Polygons become
// MultiPolygons, polylines MultiLineStrings. Null, empty and unsupported shapes return nil.
func ShapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(SRID)
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// parts splits shapefile points into their rings or line parts.
func parts(numParts int32, starts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, numParts)
	for i := int32(0); i < numParts; i++ {
		start := starts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = starts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(SRID)
	for i, flat := range parts(pl.NumParts, pl.Parts, pl.Points) {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon groups rings the shapefile way: clockwise rings are outer
// boundaries, counter-clockwise rings are holes in the preceding outer ring.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i, flat := range parts(p.NumParts, p.Parts, p.Points) {
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if signedArea(flat) > 0 && len(polys) > 0 {
			if err := polys[len(polys)-1].Push(ring); err != nil {
				zap.L().Debug("geo: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		polys = append(polys, poly)
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for i, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(flat []float64) float64 {
	var a float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return a / 2
}
