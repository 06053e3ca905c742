package spatial

import (
	"context"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Assigner maps incident points to their containing census tract.
type Assigner struct {
	tracts  []model.Tract
	grid    *Grid
	srid    int
	workers int
}

// AssignStats summarizes an assignment pass. Unmatched incidents are carried
// through with an empty GEOID, never dropped silently.
type AssignStats struct {
	Total     int
	Matched   int
	Unmatched int
	// BoundaryTies counts points contained by more than one tract polygon
	// (shared boundary). Each resolves to the lowest GEOID.
	BoundaryTies int
}

// NewAssigner builds an assigner over the tract layer. srid is the layer's
// spatial reference system; points assigned later must declare the same one.
// workers bounds the fan-out; <= 0 uses GOMAXPROCS.
func NewAssigner(tracts []model.Tract, srid, workers int) *Assigner {
	geoms := make([]geom.T, len(tracts))
	for i, tr := range tracts {
		geoms[i] = tr.Geometry
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Assigner{
		tracts:  tracts,
		grid:    NewGrid(geoms, 0),
		srid:    srid,
		workers: workers,
	}
}

// Assign annotates each incident with its containing tract. Each incident's
// result is independent, so the scan is fanned out across workers. Mismatched
// reference systems are a fatal configuration error, not a degraded run.
func (a *Assigner) Assign(ctx context.Context, incidents []model.Incident, pointSRID int) ([]model.AssignedIncident, AssignStats, error) {
	if pointSRID != a.srid {
		return nil, AssignStats{}, eris.Errorf(
			"spatial: incident SRID %d does not match tract layer SRID %d", pointSRID, a.srid)
	}

	log := zap.L().With(zap.String("component", "spatial.assigner"))

	results := make([]model.AssignedIncident, len(incidents))
	ties := make([]bool, len(incidents))

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(a.workers)

	chunk := (len(incidents) + a.workers - 1) / a.workers
	if chunk == 0 {
		chunk = 1
	}
	for start := 0; start < len(incidents); start += chunk {
		end := start + chunk
		if end > len(incidents) {
			end = len(incidents)
		}
		start, end := start, end
		grp.Go(func() error {
			for i := start; i < end; i++ {
				inc := incidents[i]
				geoid, name, tied := a.locate(inc.Lng, inc.Lat)
				results[i] = model.AssignedIncident{
					Incident:   inc,
					TractGEOID: geoid,
					TractName:  name,
				}
				ties[i] = tied
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, AssignStats{}, err
	}

	stats := AssignStats{Total: len(incidents)}
	for i, r := range results {
		if r.Matched() {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		if ties[i] {
			stats.BoundaryTies++
			log.Warn("incident on shared tract boundary, resolved to lowest GEOID",
				zap.Int64("objectid", r.ObjectID),
				zap.String("tract_geoid", r.TractGEOID),
			)
		}
	}

	if stats.Unmatched > 0 {
		log.Warn("incidents not matched to any tract", zap.Int("unmatched", stats.Unmatched))
	}
	return results, stats, nil
}

// locate returns the tract containing the point. Multi-containment (a point
// exactly on a shared boundary) resolves to the lexicographically smallest
// GEOID so results are stable across runs.
func (a *Assigner) locate(lng, lat float64) (geoid, name string, tied bool) {
	coord := geom.Coord{lng, lat}

	var matches []int
	for _, i := range a.grid.Candidates(lng, lat) {
		if Contains(a.tracts[i].Geometry, coord) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return "", "", false
	case 1:
		t := a.tracts[matches[0]]
		return t.GEOID, t.Name, false
	default:
		sort.Slice(matches, func(x, y int) bool {
			return a.tracts[matches[x]].GEOID < a.tracts[matches[y]].GEOID
		})
		t := a.tracts[matches[0]]
		return t.GEOID, t.Name, true
	}
}
