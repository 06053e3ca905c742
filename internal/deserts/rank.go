// Package deserts ranks trauma-desert tracts by combined severity.
package deserts

import (
	"sort"

	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/classify"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Ranking is one trauma-desert tract with its severity score and rank.
type Ranking struct {
	Rank                 int     `csv:"rank"`
	GEOID                string  `csv:"GEOID"`
	Name                 string  `csv:"NAME"`
	TotalIncidents       int     `csv:"total_shootings"`
	AnnualDensityPerSqMi float64 `csv:"annual_shootings_per_sq_mi"`
	TimeToNearest        int     `csv:"time_to_nearest"`
	NearestFacility      string  `csv:"nearest_trauma_center"`
	TotalPopulation      int     `csv:"total_population"`
	PctPoverty           float64 `csv:"pct_poverty"`
	Score                float64 `csv:"severity_score"`
}

// Rank selects the trauma-desert tracts (high density, high time) and orders
// them by a severity score weighting both axes equally. Each axis is min-max
// normalized within the desert subset; ties share the better rank.
func Rank(tracts []model.ClassifiedTract) []Ranking {
	var deserts []model.ClassifiedTract
	for _, t := range tracts {
		if t.BivariateClass == model.TraumaDesertClass {
			deserts = append(deserts, t)
		}
	}
	if len(deserts) == 0 {
		zap.L().Info("no trauma desert tracts to rank")
		return nil
	}

	densities := make([]float64, len(deserts))
	times := make([]float64, len(deserts))
	for i, t := range deserts {
		densities[i] = t.AnnualDensityPerSqMi
		times[i] = float64(t.TimeToNearest)
	}
	dNorm := minMaxNormalize(densities)
	tNorm := minMaxNormalize(times)

	out := make([]Ranking, len(deserts))
	for i, t := range deserts {
		out[i] = Ranking{
			GEOID:                t.GEOID,
			Name:                 t.Name,
			TotalIncidents:       t.TotalIncidents,
			AnnualDensityPerSqMi: t.AnnualDensityPerSqMi,
			TimeToNearest:        t.TimeToNearest,
			NearestFacility:      t.NearestFacility,
			TotalPopulation:      t.TotalPopulation,
			PctPoverty:           t.PctPoverty,
			Score:                classify.Round3(0.5*dNorm[i] + 0.5*tNorm[i]),
		}
	}

	// Worst first; GEOID keeps equal scores in a stable order.
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].GEOID < out[b].GEOID
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}

	zap.L().Info("trauma deserts ranked", zap.Int("count", len(out)))
	return out
}

// minMaxNormalize scales values into [0, 1]. A constant series normalizes to
// zero so the other axis decides the score alone.
func minMaxNormalize(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(values))
	if hi == lo {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
