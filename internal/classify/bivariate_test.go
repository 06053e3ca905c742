package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func metricsFixture(densities []float64) []model.TractMetrics {
	out := make([]model.TractMetrics, len(densities))
	for i, d := range densities {
		out[i] = model.TractMetrics{
			GEOID:                geoid(i),
			AnnualDensityPerSqMi: d,
		}
	}
	return out
}

func transportFixture(times []int) []model.TransportResult {
	out := make([]model.TransportResult, len(times))
	for i, tm := range times {
		out[i] = model.TransportResult{GEOID: geoid(i), TimeToNearest: tm}
	}
	return out
}

func geoid(i int) string {
	return model.NormalizeGEOID(string(rune('1'+i)) + "000100")
}

func TestCombine_EndToEndScenario(t *testing.T) {
	// Densities and times aligned one-to-one: the corners of the matrix.
	metrics := metricsFixture([]float64{1.0, 5.0, 9.0})
	transport := transportFixture([]int{5, 15, 25})

	res, err := Combine(metrics, transport)
	require.NoError(t, err)
	require.Len(t, res.Tracts, 3)
	assert.Zero(t, res.DefaultCount)

	assert.Equal(t, 1, res.Tracts[0].BivariateClass)
	assert.Equal(t, 5, res.Tracts[1].BivariateClass)
	assert.Equal(t, model.TraumaDesertClass, res.Tracts[2].BivariateClass)
	assert.Equal(t, "TRAUMA DESERT", res.Tracts[2].BivariateLabel)
	assert.Equal(t, "Trauma Desert", res.Tracts[2].PriorityCategory)

	// Swapping the time axis flips each tract's time tier without touching
	// its density tier.
	transport[2].TimeToNearest = 5
	transport[0].TimeToNearest = 25
	res, err = Combine(metrics, transport)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Tracts[2].BivariateClass, "high density, low time")
	assert.Equal(t, 3, res.Tracts[0].BivariateClass, "low density, high time")
}

func TestCombine_EveryTractClassified(t *testing.T) {
	metrics := metricsFixture([]float64{0, 0, 0, 2, 4, 6, 8, 9, 10})
	transport := transportFixture([]int{5, 5, 10, 10, 15, 20, 30, 31, 31})

	res, err := Combine(metrics, transport)
	require.NoError(t, err)
	require.Len(t, res.Tracts, len(metrics))

	for _, tr := range res.Tracts {
		assert.GreaterOrEqual(t, tr.BivariateClass, 1)
		assert.LessOrEqual(t, tr.BivariateClass, 9)
		assert.NotEmpty(t, tr.BivariateLabel)
		assert.NotEmpty(t, tr.PriorityCategory)
	}
	assert.Zero(t, res.DefaultCount, "default path must not trigger on valid input")
}

func TestCombine_MissingTransportFailsLoudly(t *testing.T) {
	metrics := metricsFixture([]float64{1, 2})
	transport := transportFixture([]int{5}) // second tract missing

	_, err := Combine(metrics, transport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transport result")
}

func TestCombine_JoinKeysNormalized(t *testing.T) {
	metrics := metricsFixture([]float64{1})
	// Transport row arrives with a float-coerced key; the join must still hit.
	transport := []model.TransportResult{{GEOID: "1000100.0", TimeToNearest: 5}}

	res, err := Combine(metrics, transport)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Tracts[0].TimeToNearest)
}
