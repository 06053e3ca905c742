package classify

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Result is the classified dataset plus the count of records that fell back
// to the default class. DefaultCount must be zero on valid input; a non-zero
// value means tiers escaped the 1..3 range upstream and is surfaced by a
// validation check.
type Result struct {
	Tracts       []model.ClassifiedTract
	DefaultCount int
}

// Combine joins transport results onto tract metrics, bins both axes into
// terciles, and assigns the 1..9 bivariate class. Every input tract receives
// exactly one class; a tract with no transport result is a broken upstream
// join and fails loudly.
func Combine(metrics []model.TractMetrics, transport []model.TransportResult) (Result, error) {
	log := zap.L().With(zap.String("component", "classify"))

	byGEOID := make(map[string]model.TransportResult, len(transport))
	for _, tr := range transport {
		byGEOID[model.NormalizeGEOID(tr.GEOID)] = tr
	}

	densities := make([]float64, len(metrics))
	times := make([]float64, len(metrics))
	joined := make([]model.TransportResult, len(metrics))
	for i, m := range metrics {
		tr, ok := byGEOID[model.NormalizeGEOID(m.GEOID)]
		if !ok {
			return Result{}, eris.Errorf("classify: tract %s has no transport result", m.GEOID)
		}
		joined[i] = tr
		densities[i] = m.AnnualDensityPerSqMi
		times[i] = float64(tr.TimeToNearest)
	}

	densityTiers := Terciles(densities)
	timeTiers := Terciles(times)

	res := Result{Tracts: make([]model.ClassifiedTract, len(metrics))}
	for i, m := range metrics {
		d, tm := densityTiers[i], timeTiers[i]

		class := model.BivariateClass(d, tm)
		if !d.Valid() || !tm.Valid() {
			// Safety valve, not a guarantee: assigning the middle class keeps
			// the record instead of dropping it, but hides an upstream bug.
			log.Warn("unknown tercile combination, defaulting to middle class",
				zap.String("geoid", m.GEOID),
				zap.Int("density_tier", int(d)),
				zap.Int("time_tier", int(tm)),
			)
			class = model.DefaultBivariateClass
			res.DefaultCount++
		}

		tr := joined[i]
		res.Tracts[i] = model.ClassifiedTract{
			TractMetrics:     m,
			TimeToNearest:    tr.TimeToNearest,
			NearestFacility:  tr.NearestFacility,
			TimeCategory:     tr.TimeCategory,
			TimePercentile:   tr.TimePercentile,
			WithinGoldenHour: tr.WithinGoldenHour,
			DensityTercile:   d,
			TimeTercile:      tm,
			BivariateClass:   class,
			BivariateLabel:   model.ClassLabels[class],
			PriorityCategory: model.PriorityCategories[class],
		}
	}

	if res.DefaultCount > 0 {
		log.Warn("tracts defaulted to middle class", zap.Int("count", res.DefaultCount))
	}
	return res, nil
}
