// Package transport resolves each tract's drive time to the nearest trauma
// center from nested isochrone rings.
package transport

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/classify"
	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
	"github.com/urban-health-lab/trauma-desert-cli/internal/spatial"
)

// Stats summarizes a resolution pass.
type Stats struct {
	// Catchments counts tracts per nearest facility, including the
	// beyond-coverage bucket.
	Catchments      map[string]int
	BeyondCoverage  int
	WithinGoldenHour int
}

// facilityRings is one facility's rings, thresholds ascending.
type facilityRings struct {
	name  string
	rings []model.IsochroneRing
}

// Resolver holds isochrone rings grouped per facility. Facilities are walked
// in name order and rings in ascending threshold order, so resolution is
// deterministic regardless of input file order.
type Resolver struct {
	facilities []facilityRings
	pipeline   config.PipelineConfig
}

// NewResolver groups and orders rings. A ring whose threshold is not one of
// the configured ring minutes means the isochrone inputs and configuration
// have drifted apart, and is rejected.
func NewResolver(rings []model.IsochroneRing, pipeline config.PipelineConfig) (*Resolver, error) {
	if len(rings) == 0 {
		return nil, eris.New("transport: no isochrone rings loaded")
	}

	allowed := make(map[int]bool, len(pipeline.RingMinutes))
	for _, m := range pipeline.RingMinutes {
		allowed[m] = true
	}

	byName := make(map[string][]model.IsochroneRing)
	for _, r := range rings {
		if !allowed[r.Minutes] {
			return nil, eris.Errorf("transport: facility %q has a %d-minute ring, configured thresholds are %v",
				r.FacilityName, r.Minutes, pipeline.RingMinutes)
		}
		byName[r.FacilityName] = append(byName[r.FacilityName], r)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &Resolver{pipeline: pipeline}
	for _, name := range names {
		fr := facilityRings{name: name, rings: byName[name]}
		sort.Slice(fr.rings, func(a, b int) bool { return fr.rings[a].Minutes < fr.rings[b].Minutes })
		res.facilities = append(res.facilities, fr)
	}
	return res, nil
}

// Resolve computes each tract's transport result. The tract is located by its
// geometry centroid; the resolved time is the smallest ring threshold, across
// all facilities, whose polygon contains that centroid. Centroids outside
// every ring get the beyond-coverage sentinel.
func (r *Resolver) Resolve(tracts []model.Tract) ([]model.TransportResult, Stats, error) {
	log := zap.L().With(zap.String("component", "transport"))
	stats := Stats{Catchments: make(map[string]int)}

	results := make([]model.TransportResult, len(tracts))
	times := make([]float64, len(tracts))
	for i, tract := range tracts {
		centroid, ok := spatial.Centroid(tract.Geometry)
		if !ok {
			return nil, Stats{}, eris.Errorf("transport: tract %s has a degenerate geometry, cannot locate centroid", tract.GEOID)
		}

		best, facility := r.pipeline.BeyondCoverageMinutes, model.BeyondCoverageFacility
		for _, fr := range r.facilities {
			// Rings are nested, so the first containing ring is this
			// facility's time. Strict comparison keeps the earlier facility
			// on ties.
			for _, ring := range fr.rings {
				if ring.Minutes >= best {
					break
				}
				if spatial.Contains(ring.Geometry, centroid) {
					best, facility = ring.Minutes, fr.name
					break
				}
			}
		}

		if facility == model.BeyondCoverageFacility {
			stats.BeyondCoverage++
			log.Warn("tract centroid outside all isochrone rings",
				zap.String("geoid", tract.GEOID),
				zap.Int("assigned_minutes", best),
			)
		}
		stats.Catchments[facility]++

		within := best <= r.pipeline.GoldenHourMinutes
		if within {
			stats.WithinGoldenHour++
		}
		results[i] = model.TransportResult{
			GEOID:            tract.GEOID,
			TimeToNearest:    best,
			NearestFacility:  facility,
			TimeCategory:     r.timeCategory(best),
			WithinGoldenHour: within,
		}
		times[i] = float64(best)
	}

	for i, pct := range classify.PercentileRanks(times) {
		results[i].TimePercentile = classify.Round3(pct)
	}

	log.Info("transport times resolved",
		zap.Int("tracts", len(tracts)),
		zap.Int("beyond_coverage", stats.BeyondCoverage),
		zap.Int("within_golden_hour", stats.WithinGoldenHour),
	)
	return results, stats, nil
}

// timeCategory labels a resolved time with its ring band, e.g. "5-10 min".
func (r *Resolver) timeCategory(minutes int) string {
	prev := 0
	for _, m := range r.pipeline.RingMinutes {
		if minutes <= m {
			return fmt.Sprintf("%d-%d min", prev, m)
		}
		prev = m
	}
	return fmt.Sprintf("%d+ min", prev)
}
