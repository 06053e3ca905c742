// Package aggregate rolls assigned incidents up into per-tract metrics and
// joins census demographics onto them.
package aggregate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/classify"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Stats accounts for records excluded or degraded during aggregation.
type Stats struct {
	// ExcludedUnmatched counts incidents with no tract assignment. They are
	// dropped from tract metrics but remain in the assigned dataset.
	ExcludedUnmatched int
	// UnknownTract counts incidents assigned to a GEOID absent from the tract
	// boundary set. Non-zero means the boundary and assignment inputs disagree.
	UnknownTract int
	// MissingDemographics counts tracts with no census record; their
	// demographic columns stay at zero values.
	MissingDemographics int

	YearsSpan int
	MaxYear   int
}

// Aggregate produces one TractMetrics row per tract, sorted by GEOID. Every
// tract in the boundary set gets a row, including tracts with zero incidents;
// rates that are undefined for empty tracts (fatality rate, average age) are
// nil rather than zero.
func Aggregate(assigned []model.AssignedIncident, tracts []model.Tract, demos []model.Demographics) ([]model.TractMetrics, Stats) {
	log := zap.L().With(zap.String("component", "aggregate"))

	var stats Stats
	known := make(map[string]model.Tract, len(tracts))
	for _, t := range tracts {
		known[model.NormalizeGEOID(t.GEOID)] = t
	}

	groups := make(map[string][]model.AssignedIncident)
	for _, a := range assigned {
		if !a.Matched() {
			stats.ExcludedUnmatched++
			continue
		}
		key := model.NormalizeGEOID(a.TractGEOID)
		if _, ok := known[key]; !ok {
			stats.UnknownTract++
			log.Warn("incident assigned to unknown tract, excluding",
				zap.String("geoid", a.TractGEOID),
				zap.Int64("objectid", a.ObjectID),
			)
			continue
		}
		groups[key] = append(groups[key], a)
	}
	if stats.ExcludedUnmatched > 0 {
		log.Info("excluding unmatched incidents from tract metrics",
			zap.Int("count", stats.ExcludedUnmatched))
	}

	stats.YearsSpan, stats.MaxYear = yearSpan(groups)

	demoByGEOID := make(map[string]model.Demographics, len(demos))
	for _, d := range demos {
		demoByGEOID[model.NormalizeGEOID(d.GEOID)] = d
	}

	geoids := make([]string, 0, len(known))
	for g := range known {
		geoids = append(geoids, g)
	}
	sort.Strings(geoids)

	rows := make([]model.TractMetrics, 0, len(geoids))
	for _, g := range geoids {
		tract := known[g]
		row := tractRow(g, tract, groups[g], stats.YearsSpan, stats.MaxYear)

		if d, ok := demoByGEOID[g]; ok {
			row.TotalPopulation = d.TotalPopulation
			row.PctBlack = d.PctBlack
			row.PctPoverty = d.PctPoverty
			row.MedianIncome = d.MedianIncome
		} else {
			stats.MissingDemographics++
		}

		// Per-capita rates stay zero for unpopulated tracts. Dividing by a
		// zero population would manufacture Inf rows downstream.
		if row.TotalPopulation > 0 {
			pop := float64(row.TotalPopulation)
			row.Per10kPop = classify.Round3(float64(row.TotalIncidents) / pop * 10_000)
			row.AnnualPer10kPop = classify.Round3(row.IncidentsPerYear / pop * 10_000)
		}
		rows = append(rows, row)
	}
	if stats.MissingDemographics > 0 {
		log.Warn("tracts missing census demographics",
			zap.Int("count", stats.MissingDemographics))
	}

	densities := make([]float64, len(rows))
	for i, r := range rows {
		densities[i] = r.AnnualDensityPerSqMi
	}
	for i, pct := range classify.PercentileRanks(densities) {
		rows[i].DensityPercentile = classify.Round3(pct)
	}

	return rows, stats
}

func tractRow(geoid string, tract model.Tract, incidents []model.AssignedIncident, span, maxYear int) model.TractMetrics {
	row := model.TractMetrics{
		GEOID:    geoid,
		TractCE:  tract.TractCE,
		Name:     tract.Name,
		AreaSqMi: tract.AreaSqMi,
	}

	total := len(incidents)
	row.TotalIncidents = total

	var fatal, recent, male, outside, withAge int
	var ageSum float64
	for _, in := range incidents {
		if in.IsFatal {
			fatal++
		}
		if in.Year == maxYear {
			recent++
		}
		if in.IsMale {
			male++
		}
		if in.IsOutside {
			outside++
		}
		if in.Age != nil {
			withAge++
			ageSum += *in.Age
		}
	}
	row.FatalIncidents = fatal
	row.RecentIncidents = recent
	row.IncidentsPerYear = classify.Round3(float64(total) / float64(span))

	if total > 0 {
		row.FatalityRate = ptr(classify.Round1(float64(fatal) / float64(total) * 100))
		row.PctMale = ptr(classify.Round1(float64(male) / float64(total) * 100))
		row.PctOutside = ptr(classify.Round1(float64(outside) / float64(total) * 100))
	}
	if withAge > 0 {
		row.AvgVictimAge = ptr(classify.Round1(ageSum / float64(withAge)))
	}

	if tract.AreaSqMi > 0 {
		row.DensityPerSqMi = classify.Round3(float64(total) / tract.AreaSqMi)
		row.AnnualDensityPerSqMi = classify.Round3(row.IncidentsPerYear / tract.AreaSqMi)
	}
	return row
}

// yearSpan returns the inclusive year span and latest year across all grouped
// incidents. Records whose dates failed to parse carry a zero year and are
// ignored here. An empty dataset yields a span of 1 so per-year rates divide
// cleanly to zero.
func yearSpan(groups map[string][]model.AssignedIncident) (span, maxYear int) {
	minYear := 0
	for _, incidents := range groups {
		for _, in := range incidents {
			if in.Year == 0 {
				continue
			}
			if minYear == 0 || in.Year < minYear {
				minYear = in.Year
			}
			if in.Year > maxYear {
				maxYear = in.Year
			}
		}
	}
	if minYear == 0 {
		return 1, 0
	}
	return maxYear - minYear + 1, maxYear
}

func ptr(v float64) *float64 { return &v }
