package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIncidents(t *testing.T) {
	path := writeFile(t, "shootings.csv",
		"objectid,dc_key,date_,time,lat,lng,race,sex,age,fatal,outside,inside,officer_involved\n"+
			"1,202001001,2020-06-15,23:15,40.01,-75.15,B,M,24,1,1,0,N\n"+
			"2,202001002,2020-06-16,01:00,,,B,F,30,0,0,1,N\n")

	rows, err := Incidents(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0].ObjectID)
	require.NotNil(t, rows[0].Lat)
	assert.InDelta(t, 40.01, *rows[0].Lat, 1e-9)
	assert.Equal(t, "1", rows[0].Fatal)
	assert.Nil(t, rows[1].Lat, "blank coordinate parses to nil")
}

func TestIncidents_MissingFile(t *testing.T) {
	_, err := Incidents(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestDemographics_SuppressedIncome(t *testing.T) {
	path := writeFile(t, "demographics.csv",
		"GEOID,total_population,pct_black,pct_white,pct_asian,pct_poverty,median_household_income\n"+
			"42101000100,5000,60.5,25.0,5.0,30.2,45000\n"+
			"42101000200.0,3000,40.0,45.0,8.0,12.0,-666666666\n")

	rows, err := Demographics(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].MedianIncome)
	assert.InDelta(t, 45000, *rows[0].MedianIncome, 1e-9)

	assert.Equal(t, "42101000200", rows[1].GEOID, "float-coerced GEOID normalized")
	assert.Nil(t, rows[1].MedianIncome, "suppression sentinel becomes nil")
}

func TestFacilities(t *testing.T) {
	path := writeFile(t, "trauma_centers.csv",
		"name,trauma_level,lat,lng\n"+
			"Temple University Hospital,I,40.005,-75.150\n")

	rows, err := Facilities(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Temple University Hospital", rows[0].Name)
	assert.Equal(t, "I", rows[0].Level)
}

func TestFacilities_EmptyRegistryFails(t *testing.T) {
	path := writeFile(t, "trauma_centers.csv", "name,trauma_level,lat,lng\n")
	_, err := Facilities(path)
	require.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	in := []model.Demographics{{GEOID: "42101000100", TotalPopulation: 100, PctBlack: 50}}
	require.NoError(t, WriteCSV(path, in))

	out, err := Demographics(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].GEOID, out[0].GEOID)
	assert.Equal(t, 100, out[0].TotalPopulation)
}
