package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
	"github.com/urban-health-lab/trauma-desert-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// Three adjacent square tracts along one latitude band. Tract 1 sits in the
// 5-minute ring, tract 2 only in the 30-minute ring, tract 3 outside all
// rings.
const fixtureTracts = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "42101000100", "TRACTCE": "000100", "NAME": "1", "area_sq_mi": 1.0},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.20, 39.90], [-75.15, 39.90], [-75.15, 39.95], [-75.20, 39.95], [-75.20, 39.90]]]}
    },
    {
      "type": "Feature",
      "properties": {"GEOID": "42101000200", "TRACTCE": "000200", "NAME": "2", "area_sq_mi": 1.0},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.15, 39.90], [-75.10, 39.90], [-75.10, 39.95], [-75.15, 39.95], [-75.15, 39.90]]]}
    },
    {
      "type": "Feature",
      "properties": {"GEOID": "42101000300", "TRACTCE": "000300", "NAME": "3", "area_sq_mi": 1.0},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.10, 39.90], [-75.05, 39.90], [-75.05, 39.95], [-75.10, 39.95], [-75.10, 39.90]]]}
    }
  ]
}`

const fixtureIsochrones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"hospital_name": "Einstein Medical Center", "time_minutes": 5},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.21, 39.89], [-75.14, 39.89], [-75.14, 39.96], [-75.21, 39.96], [-75.21, 39.89]]]}
    },
    {
      "type": "Feature",
      "properties": {"hospital_name": "Einstein Medical Center", "time_minutes": 30},
      "geometry": {"type": "Polygon", "coordinates": [[[-75.22, 39.89], [-75.11, 39.89], [-75.11, 39.96], [-75.22, 39.96], [-75.22, 39.89]]]}
    }
  ]
}`

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	for sub, files := range map[string]map[string]string{
		"raw": {
			"shootings.csv": "objectid,dc_key,date_,time,lat,lng,race,sex,age,fatal,outside,inside,officer_involved\n" +
				// one incident in tract 1
				"1,K1,2020-06-15,22:00:00,39.92,-75.18,B,M,24,0,1,0,N\n" +
				// two in tract 2
				"2,K2,2021-01-10,01:30:00,39.92,-75.12,B,M,30,1,1,0,N\n" +
				"3,K3,2022-03-05,13:00:00,39.93,-75.13,W,F,19,0,0,1,N\n" +
				// three in tract 3, the eventual trauma desert
				"4,K4,2020-08-20,23:45:00,39.92,-75.08,B,M,27,1,1,0,N\n" +
				"5,K5,2022-11-02,03:15:00,39.93,-75.07,B,M,35,0,1,0,N\n" +
				"6,K6,2023-04-18,20:30:00,39.91,-75.06,H,M,22,1,1,0,N\n",
			"tract_demographics.csv": "GEOID,total_population,pct_black,pct_white,pct_asian,pct_poverty,median_household_income\n" +
				"42101000100,5000,60.0,25.0,5.0,30.0,45000\n" +
				"42101000200,4000,55.0,30.0,6.0,25.0,50000\n" +
				"42101000300,3000,70.0,15.0,4.0,40.0,-666666666\n",
			"trauma_centers.csv": "name,trauma_level,lat,lng\n" +
				"Einstein Medical Center,I,39.93,-75.17\n",
		},
		"geo":        {"census_tracts.geojson": fixtureTracts},
		"isochrones": {"einstein.geojson": fixtureIsochrones},
	} {
		dir := filepath.Join(root, sub)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for name, content := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		}
	}

	return &config.Config{
		Paths: config.PathsConfig{
			Root: root, Raw: "raw", Geo: "geo", Isochrones: "isochrones",
			Processed: "processed", Tables: "tables",
		},
		Study: config.StudyConfig{
			Name: "Philadelphia",
			SRID: 4326,
			BBox: config.BBox{MinLat: 39.86, MaxLat: 40.14, MinLng: -75.28, MaxLng: -74.95},
		},
		Pipeline: config.PipelineConfig{
			RingMinutes:                []int{5, 10, 15, 20, 30},
			BeyondCoverageMinutes:      31,
			GoldenHourMinutes:          20,
			TercileBalanceTolerancePts: 15,
		},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg := fixtureConfig(t)
	st := newTestStore(t)
	ctx := context.Background()

	res, err := New(cfg, st).Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Tracts, 3)

	byGEOID := make(map[string]model.ClassifiedTract)
	for _, tr := range res.Tracts {
		byGEOID[tr.GEOID] = tr
	}

	// Transport: tract 1 is 5 minutes out, tract 2 is 30, tract 3 is beyond
	// every ring.
	t1, t2, t3 := byGEOID["42101000100"], byGEOID["42101000200"], byGEOID["42101000300"]
	assert.Equal(t, 5, t1.TimeToNearest)
	assert.Equal(t, "Einstein Medical Center", t1.NearestFacility)
	assert.True(t, t1.WithinGoldenHour)
	assert.Equal(t, 30, t2.TimeToNearest)
	assert.Equal(t, 31, t3.TimeToNearest)
	assert.Equal(t, model.BeyondCoverageFacility, t3.NearestFacility)

	// Incident counts per tract drive the density axis.
	assert.Equal(t, 1, t1.TotalIncidents)
	assert.Equal(t, 2, t2.TotalIncidents)
	assert.Equal(t, 3, t3.TotalIncidents)

	// Tract 3: highest density, longest time. The trauma desert.
	assert.Equal(t, model.TraumaDesertClass, t3.BivariateClass)
	assert.Equal(t, "TRAUMA DESERT", t3.BivariateLabel)
	require.Len(t, res.Deserts, 1)
	assert.Equal(t, "42101000300", res.Deserts[0].GEOID)
	assert.Equal(t, 1, res.Deserts[0].Rank)

	// Demographics joined; suppressed income is nil.
	assert.Equal(t, 5000, t1.TotalPopulation)
	assert.Nil(t, t3.MedianIncome)

	// Summary and validation.
	assert.Equal(t, 6, res.Summary.RawIncidents)
	assert.Equal(t, 6, res.Summary.CleanIncidents)
	assert.InDelta(t, 100.0, res.Summary.RetentionPct, 1e-9)
	assert.Equal(t, 1, res.Summary.BeyondCoverage)
	assert.True(t, res.Summary.ValidationPassed)
	assert.False(t, res.Report.Failed())
}

func TestPipeline_PersistsRunAndSnapshots(t *testing.T) {
	cfg := fixtureConfig(t)
	st := newTestStore(t)
	ctx := context.Background()

	res, err := New(cfg, st).Run(ctx)
	require.NoError(t, err)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Tracts)

	phases, err := st.ListPhases(ctx, res.RunID)
	require.NoError(t, err)
	var names []string
	for _, p := range phases {
		assert.Equal(t, store.PhaseStatusComplete, p.Status)
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"load", "cleanse", "assign", "aggregate", "transport", "classify", "validate", "rank", "persist"}, names)

	tracts, err := st.GetTracts(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, tracts, 3)

	report, err := st.GetReport(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, report, len(res.Report.Checks))

	for _, name := range []string{
		cleanSnapshot, assignedSnapshot, densitySnapshot,
		transportSnapshot, analysisSnapshot, classifiedGeoJSON,
	} {
		_, err := os.Stat(filepath.Join(cfg.Paths.ProcessedDir(), name))
		assert.NoError(t, err, name)
	}
	for _, name := range []string{rankingsTable, validationTable} {
		_, err := os.Stat(filepath.Join(cfg.Paths.TablesDir(), name))
		assert.NoError(t, err, name)
	}
}

func TestPipeline_FailsAndRecordsMissingInput(t *testing.T) {
	cfg := fixtureConfig(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Paths.IsochronesDir(), "einstein.geojson")))
	st := newTestStore(t)
	ctx := context.Background()

	_, err := New(cfg, st).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no isochrone files")

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: store.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "no isochrone files")
}

func TestPipeline_MissingBoundariesNamesBothForms(t *testing.T) {
	cfg := fixtureConfig(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Paths.GeoDir(), "census_tracts.geojson")))
	st := newTestStore(t)

	_, err := New(cfg, st).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("need %s or %s", tractsFile, tractsShapefile))
}
