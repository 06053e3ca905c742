package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

const tractsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "42101000100", "TRACTCE": "000100", "NAME": "1", "area_sq_mi": 0.5},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.2, 39.9], [-75.1, 39.9], [-75.1, 40.0], [-75.2, 40.0], [-75.2, 39.9]]]}
    },
    {
      "type": "Feature",
      "properties": {"GEOID": 42101000200, "TRACTCE": "000200", "NAME": "2", "ALAND": 2589988.110336},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-75.1, 39.9], [-75.0, 39.9], [-75.0, 40.0], [-75.1, 40.0], [-75.1, 39.9]]]]}
    }
  ]
}`

func TestTracts(t *testing.T) {
	path := writeFile(t, "tracts.geojson", tractsGeoJSON)
	tracts, err := Tracts(path)
	require.NoError(t, err)
	require.Len(t, tracts, 2)

	assert.Equal(t, "42101000100", tracts[0].GEOID)
	assert.Equal(t, "000100", tracts[0].TractCE)
	assert.InDelta(t, 0.5, tracts[0].AreaSqMi, 1e-9)
	assert.IsType(t, &geom.Polygon{}, tracts[0].Geometry)

	assert.Equal(t, "42101000200", tracts[1].GEOID, "numeric GEOID property coerced")
	assert.InDelta(t, 1.0, tracts[1].AreaSqMi, 1e-9, "ALAND fallback in square meters")
	assert.IsType(t, &geom.MultiPolygon{}, tracts[1].Geometry)
}

func TestTracts_RejectsNonPolygonalGeometry(t *testing.T) {
	path := writeFile(t, "bad.geojson", `{
	  "type": "FeatureCollection",
	  "features": [
	    {
	      "type": "Feature",
	      "properties": {"GEOID": "42101000100"},
	      "geometry": {"type": "Point", "coordinates": [-75.1, 40.0]}
	    }
	  ]
	}`)
	_, err := Tracts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-polygonal")
}

func TestTracts_RejectsMissingGEOID(t *testing.T) {
	path := writeFile(t, "bad.geojson", `{
	  "type": "FeatureCollection",
	  "features": [
	    {
	      "type": "Feature",
	      "properties": {"NAME": "1"},
	      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
	    }
	  ]
	}`)
	_, err := Tracts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GEOID")
}

const isochroneGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"hospital_name": "Temple University Hospital", "time_minutes": 5},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.2, 39.9], [-75.1, 39.9], [-75.1, 40.0], [-75.2, 40.0], [-75.2, 39.9]]]}
    },
    {
      "type": "Feature",
      "properties": {"hospital_name": "Temple University Hospital", "time_minutes": 10},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.3, 39.8], [-75.0, 39.8], [-75.0, 40.1], [-75.3, 40.1], [-75.3, 39.8]]]}
    }
  ]
}`

func TestIsochrones(t *testing.T) {
	path := writeFile(t, "temple.geojson", isochroneGeoJSON)
	rings, err := Isochrones(path)
	require.NoError(t, err)
	require.Len(t, rings, 2)

	assert.Equal(t, "Temple University Hospital", rings[0].FacilityName)
	assert.Equal(t, 5, rings[0].Minutes)
	assert.Equal(t, 10, rings[1].Minutes)
}

func TestIsochronesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temple.geojson"), []byte(isochroneGeoJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	rings, err := IsochronesDir(dir)
	require.NoError(t, err)
	assert.Len(t, rings, 2)
}

func TestIsochronesDir_EmptyFails(t *testing.T) {
	_, err := IsochronesDir(t.TempDir())
	require.Error(t, err)
}

func TestWriteTractsGeoJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classified.geojson")
	g := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, []int{10})
	tracts := []model.ClassifiedTract{{
		TractMetrics:   model.TractMetrics{GEOID: "42101000100", Name: "1"},
		BivariateClass: 9,
	}}

	err := WriteTractsGeoJSON(path, tracts, map[string]geom.T{"42101000100": g})
	require.NoError(t, err)

	fc, err := readFeatureCollection(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "42101000100", propString(fc.Features[0].Properties, "GEOID"))
	assert.IsType(t, &geom.Polygon{}, fc.Features[0].Geometry)
}

func TestWriteTractsGeoJSON_MissingGeometryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classified.geojson")
	tracts := []model.ClassifiedTract{{TractMetrics: model.TractMetrics{GEOID: "42101000100"}}}
	err := WriteTractsGeoJSON(path, tracts, nil)
	require.Error(t, err)
}
