package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// sqMetersPerSqMile converts ALAND (square meters) to square miles.
const sqMetersPerSqMile = 2_589_988.110336

// Tracts reads census tract boundaries from a GeoJSON FeatureCollection.
// Area comes from the preprocessed area_sq_mi property when present, falling
// back to the TIGER ALAND land-area attribute.
func Tracts(path string) ([]model.Tract, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	tracts := make([]model.Tract, 0, len(fc.Features))
	noArea := 0
	for i, f := range fc.Features {
		if !isAreal(f.Geometry) {
			return nil, eris.Errorf("loader: tract feature %d in %s has non-polygonal geometry", i, path)
		}

		geoid := model.NormalizeGEOID(propString(f.Properties, "GEOID"))
		if geoid == "" {
			return nil, eris.Errorf("loader: tract feature %d in %s has no GEOID", i, path)
		}

		area, ok := propFloat(f.Properties, "area_sq_mi")
		if !ok {
			if aland, landOK := propFloat(f.Properties, "ALAND"); landOK {
				area = aland / sqMetersPerSqMile
			} else {
				noArea++
			}
		}

		tracts = append(tracts, model.Tract{
			GEOID:    geoid,
			TractCE:  propString(f.Properties, "TRACTCE"),
			Name:     propString(f.Properties, "NAME"),
			AreaSqMi: area,
			Geometry: f.Geometry,
		})
	}
	if noArea > 0 {
		zap.L().Warn("tracts missing area attributes, densities will be zero",
			zap.String("path", path), zap.Int("count", noArea))
	}

	zap.L().Info("tract boundaries loaded", zap.String("path", path), zap.Int("tracts", len(tracts)))
	return tracts, nil
}

// Isochrones reads isochrone rings from one GeoJSON file. Each feature needs
// a hospital_name and time_minutes property.
func Isochrones(path string) ([]model.IsochroneRing, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	rings := make([]model.IsochroneRing, 0, len(fc.Features))
	for i, f := range fc.Features {
		if !isAreal(f.Geometry) {
			return nil, eris.Errorf("loader: isochrone feature %d in %s has non-polygonal geometry", i, path)
		}

		name := propString(f.Properties, "hospital_name")
		if name == "" {
			return nil, eris.Errorf("loader: isochrone feature %d in %s has no hospital_name", i, path)
		}
		minutes, ok := propFloat(f.Properties, "time_minutes")
		if !ok {
			return nil, eris.Errorf("loader: isochrone feature %d in %s has no time_minutes", i, path)
		}

		rings = append(rings, model.IsochroneRing{
			FacilityName: name,
			Minutes:      int(minutes),
			Geometry:     f.Geometry,
		})
	}
	return rings, nil
}

// IsochronesDir reads every .geojson file in a directory, in name order.
func IsochronesDir(dir string) ([]model.IsochroneRing, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, eris.Wrapf(err, "loader: glob isochrones in %s", dir)
	}
	if len(paths) == 0 {
		return nil, eris.Errorf("loader: no isochrone files in %s", dir)
	}
	sort.Strings(paths)

	var rings []model.IsochroneRing
	for _, path := range paths {
		fileRings, err := Isochrones(path)
		if err != nil {
			return nil, err
		}
		rings = append(rings, fileRings...)
	}

	zap.L().Info("isochrone rings loaded",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int("rings", len(rings)),
	)
	return rings, nil
}

// WriteTractsGeoJSON writes classified tracts back out as a
// FeatureCollection, geometry plus the full attribute row.
func WriteTractsGeoJSON(path string, tracts []model.ClassifiedTract, geoms map[string]geom.T) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(tracts))}
	for _, t := range tracts {
		g, ok := geoms[t.GEOID]
		if !ok {
			return eris.Errorf("loader: no geometry for tract %s", t.GEOID)
		}

		props, err := structProps(t)
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         t.GEOID,
			Geometry:   g,
			Properties: props,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrapf(err, "loader: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "loader: write %s", path)
	}
	return nil
}

// structProps flattens a struct into a GeoJSON property map via its JSON
// round trip.
func structProps(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "loader: encode properties")
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, eris.Wrap(err, "loader: decode properties")
	}
	return props, nil
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "loader: parse GeoJSON %s", path)
	}
	return &fc, nil
}

func isAreal(g geom.T) bool {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	default:
		return false
	}
}

// propString reads a property as a string, tolerating the numeric coercion
// GIS exports apply to identifier columns.
func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func propFloat(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
