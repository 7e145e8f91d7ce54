package geo

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/palette"
)

// WriteGeoJSON writes features as a FeatureCollection styled by res. Every feature carries
// the properties id, value, class, color and label; missing values get class -1, the
// palette's missing colour and a null value and label.
func WriteGeoJSON(w io.Writer, features []Feature, res *classify.Result, pal palette.Palette) error {
	labels := palette.Labels(res, palette.DefaultLabelOptions())

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		class := res.Find(f.Value)
		props := map[string]interface{}{
			"id":    f.ID,
			"value": nil,
			"class": class,
			"color": pal.Color(class),
			"label": nil,
		}
		if class >= 0 {
			props["value"] = f.Value
			props["label"] = labels[class]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}

	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrap(err, "geo: encode geojson")
	}
	return nil
}
