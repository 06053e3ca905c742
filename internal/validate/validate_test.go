package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func bboxFixture() config.BBox {
	return config.BBox{MinLat: 39.86, MaxLat: 40.14, MinLng: -75.28, MaxLng: -74.95}
}

// classifiedFixture spreads n tracts evenly across terciles and classes.
func classifiedFixture(n int) []model.ClassifiedTract {
	out := make([]model.ClassifiedTract, n)
	for i := range out {
		d := model.Tercile(1 + i%3)
		tm := model.Tercile(1 + (i/3)%3)
		out[i] = model.ClassifiedTract{
			TractMetrics:    model.TractMetrics{GEOID: "42101000100"},
			NearestFacility: "Einstein",
			DensityTercile:  d,
			TimeTercile:     tm,
			BivariateClass:  model.BivariateClass(d, tm),
		}
	}
	return out
}

func checkByName(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return Check{}
}

func TestRun_AllGreen(t *testing.T) {
	r := Run(Input{
		Cleanse:      model.CleanseStats{RawCount: 1000, CleanCount: 995},
		Incidents:    []model.Incident{{Lat: 40.0, Lng: -75.1}},
		BBox:         bboxFixture(),
		Tracts:       classifiedFixture(9),
		TolerancePts: 15,
	})
	assert.False(t, r.Failed())
	pass, warn, fail := r.Counts()
	assert.Equal(t, 8, pass)
	assert.Zero(t, warn)
	assert.Zero(t, fail)
	assert.Equal(t, "8 passed, 0 warnings, 0 failures", r.Summary())
}

func TestNullCoordinateCheckReportsDropCount(t *testing.T) {
	r := Run(Input{
		Cleanse:      model.CleanseStats{RawCount: 1000, CleanCount: 997, NullCoordinates: 3},
		BBox:         bboxFixture(),
		Tracts:       classifiedFixture(9),
		TolerancePts: 15,
	})
	c := checkByName(t, r, "no null coordinates")
	assert.Equal(t, StatusPass, c.Status)
	assert.Contains(t, c.Message, "3 records")
}

func TestRetentionThresholds(t *testing.T) {
	cases := []struct {
		name  string
		clean int
		want  Status
	}{
		{"at pass threshold", 990, StatusPass},
		{"between thresholds", 960, StatusWarn},
		{"below warn threshold", 940, StatusFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := checkRetention(model.CleanseStats{RawCount: 1000, CleanCount: tc.clean})
			assert.Equal(t, tc.want, c.Status)
		})
	}
}

func TestCoordinateCheckFailsOnStray(t *testing.T) {
	r := Run(Input{
		Cleanse: model.CleanseStats{RawCount: 10, CleanCount: 10},
		Incidents: []model.Incident{
			{Lat: 40.0, Lng: -75.1},
			{Lat: 41.5, Lng: -75.1}, // north of the box
		},
		BBox:         bboxFixture(),
		Tracts:       classifiedFixture(9),
		TolerancePts: 15,
	})
	assert.True(t, r.Failed())
	c := checkByName(t, r, "coordinates in study area")
	assert.Equal(t, StatusFail, c.Status)
}

func TestCompletenessFailsOnMissingClass(t *testing.T) {
	tracts := classifiedFixture(9)
	tracts[4].BivariateClass = 0
	c := checkCompleteness(tracts)
	assert.Equal(t, StatusFail, c.Status)
	assert.Contains(t, c.Message, "1 of 9")
}

func TestClassCoverageWarnsNotFails(t *testing.T) {
	tracts := classifiedFixture(3) // only classes 1, 2, 3 appear
	c := checkClassCoverage(tracts)
	assert.Equal(t, StatusWarn, c.Status)
}

func TestTercileBalance(t *testing.T) {
	balanced := classifiedFixture(9)
	c := checkTercileBalance("density terciles", balanced, 15, densityTercile)
	assert.Equal(t, StatusPass, c.Status)

	// All tracts in one tercile: spread is 100 points.
	skewed := classifiedFixture(9)
	for i := range skewed {
		skewed[i].DensityTercile = model.TercileHigh
	}
	c = checkTercileBalance("density terciles", skewed, 15, densityTercile)
	assert.Equal(t, StatusWarn, c.Status)
	assert.Contains(t, c.Message, "100.0 points")
}

func TestDefaultedClassesFail(t *testing.T) {
	r := Run(Input{
		Cleanse:      model.CleanseStats{RawCount: 10, CleanCount: 10},
		BBox:         bboxFixture(),
		Tracts:       classifiedFixture(9),
		DefaultCount: 2,
		TolerancePts: 15,
	})
	require.True(t, r.Failed())
	c := checkByName(t, r, "no defaulted classes")
	assert.Equal(t, StatusFail, c.Status)
	assert.Contains(t, c.Message, "2 tracts")
}
