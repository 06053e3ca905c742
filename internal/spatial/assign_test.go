package spatial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

func testTracts() []model.Tract {
	return []model.Tract{
		{GEOID: "42101000100", Name: "1", Geometry: square(0, 0, 1, 1)},
		{GEOID: "42101000200", Name: "2", Geometry: square(1, 0, 2, 1)},
		{GEOID: "42101000300", Name: "3", Geometry: square(0, 1, 1, 2)},
	}
}

func TestAssigner_Assign(t *testing.T) {
	a := NewAssigner(testTracts(), 4326, 2)

	incidents := []model.Incident{
		{ObjectID: 1, Lng: 0.5, Lat: 0.5},
		{ObjectID: 2, Lng: 1.5, Lat: 0.5},
		{ObjectID: 3, Lng: 0.5, Lat: 1.5},
		{ObjectID: 4, Lng: 5.0, Lat: 5.0}, // outside every tract
	}

	assigned, stats, err := a.Assign(context.Background(), incidents, 4326)
	require.NoError(t, err)
	require.Len(t, assigned, 4)

	assert.Equal(t, "42101000100", assigned[0].TractGEOID)
	assert.Equal(t, "42101000200", assigned[1].TractGEOID)
	assert.Equal(t, "42101000300", assigned[2].TractGEOID)
	assert.False(t, assigned[3].Matched())

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)
}

func TestAssigner_SRIDMismatchFatal(t *testing.T) {
	a := NewAssigner(testTracts(), 4326, 1)

	_, _, err := a.Assign(context.Background(), []model.Incident{{Lng: 0.5, Lat: 0.5}}, 3857)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SRID")
}

func TestAssigner_OverlapResolvesToLowestGEOID(t *testing.T) {
	// Two deliberately identical polygons: any interior point is a tie.
	tracts := []model.Tract{
		{GEOID: "42101000900", Name: "high", Geometry: square(0, 0, 1, 1)},
		{GEOID: "42101000100", Name: "low", Geometry: square(0, 0, 1, 1)},
	}
	a := NewAssigner(tracts, 4326, 1)

	assigned, stats, err := a.Assign(context.Background(), []model.Incident{{ObjectID: 7, Lng: 0.5, Lat: 0.5}}, 4326)
	require.NoError(t, err)

	assert.Equal(t, "42101000100", assigned[0].TractGEOID)
	assert.Equal(t, 1, stats.BoundaryTies)
}

func TestAssigner_Deterministic(t *testing.T) {
	a := NewAssigner(testTracts(), 4326, 4)
	incidents := make([]model.Incident, 200)
	for i := range incidents {
		incidents[i] = model.Incident{
			ObjectID: int64(i),
			Lng:      float64(i%20) / 10.0,
			Lat:      float64(i%15) / 10.0,
		}
	}

	first, _, err := a.Assign(context.Background(), incidents, 4326)
	require.NoError(t, err)
	second, _, err := a.Assign(context.Background(), incidents, 4326)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
