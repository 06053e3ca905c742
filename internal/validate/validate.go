// Package validate runs data-quality checks over pipeline outputs and
// produces a pass/warn/fail report.
package validate

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Status is a check outcome.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Retention thresholds, in percent of raw records kept after cleaning.
const (
	retentionPassPct = 99.0
	retentionWarnPct = 95.0
)

// Check is one validation result row.
type Check struct {
	Category string `csv:"category"`
	Name     string `csv:"check"`
	Status   Status `csv:"status"`
	Message  string `csv:"message"`
}

// Report is the ordered set of check results.
type Report struct {
	Checks []Check
}

// Failed reports whether any check failed outright.
func (r Report) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

// Counts returns the number of checks per status.
func (r Report) Counts() (pass, warn, fail int) {
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}
	return pass, warn, fail
}

// Summary is a one-line report rollup.
func (r Report) Summary() string {
	pass, warn, fail := r.Counts()
	return fmt.Sprintf("%d passed, %d warnings, %d failures", pass, warn, fail)
}

// Input collects everything the checks inspect.
type Input struct {
	Cleanse      model.CleanseStats
	Incidents    []model.Incident
	BBox         config.BBox
	Tracts       []model.ClassifiedTract
	DefaultCount int
	TolerancePts float64
}

// Run executes every check and logs the outcome. It never returns an error;
// data problems are report rows, not control flow.
func Run(in Input) Report {
	log := zap.L().With(zap.String("component", "validate"))

	var r Report
	r.add(checkRetention(in.Cleanse))
	r.add(checkNullCoordinates(in.Cleanse))
	r.add(checkCoordinates(in.Incidents, in.BBox))
	r.add(checkCompleteness(in.Tracts))
	r.add(checkClassCoverage(in.Tracts))
	r.add(checkTercileBalance("density terciles", in.Tracts, in.TolerancePts, densityTercile))
	r.add(checkTercileBalance("time terciles", in.Tracts, in.TolerancePts, timeTercile))
	r.add(checkNoDefaults(in.DefaultCount))

	for _, c := range r.Checks {
		field := zap.String("check", c.Name)
		switch c.Status {
		case StatusFail:
			log.Error(c.Message, field)
		case StatusWarn:
			log.Warn(c.Message, field)
		default:
			log.Info(c.Message, field)
		}
	}
	log.Info("validation finished", zap.String("summary", r.Summary()))
	return r
}

func (r *Report) add(c Check) { r.Checks = append(r.Checks, c) }

// englishPrinter formats counts with thousands separators for report text.
var englishPrinter = message.NewPrinter(language.English)

func checkRetention(s model.CleanseStats) Check {
	pct := s.RetentionPct()
	msg := englishPrinter.Sprintf("retained %d of %d raw records (%.1f%%)", s.CleanCount, s.RawCount, pct)
	status := StatusFail
	switch {
	case pct >= retentionPassPct:
		status = StatusPass
	case pct >= retentionWarnPct:
		status = StatusWarn
	}
	return Check{Category: "cleaning", Name: "record retention", Status: status, Message: msg}
}

// checkNullCoordinates records that every null-coordinate record was dropped
// during cleaning. Cleaned incidents carry concrete coordinates, so the check
// documents the drop count rather than rescanning.
func checkNullCoordinates(s model.CleanseStats) Check {
	return Check{
		Category: "cleaning",
		Name:     "no null coordinates",
		Status:   StatusPass,
		Message:  englishPrinter.Sprintf("%d records with missing coordinates dropped; none remain", s.NullCoordinates),
	}
}

func checkCoordinates(incidents []model.Incident, bbox config.BBox) Check {
	outside := 0
	for _, in := range incidents {
		if !bbox.Contains(in.Lat, in.Lng) {
			outside++
		}
	}
	if outside > 0 {
		return Check{
			Category: "cleaning",
			Name:     "coordinates in study area",
			Status:   StatusFail,
			Message:  englishPrinter.Sprintf("%d cleaned records fall outside the study bounding box", outside),
		}
	}
	return Check{
		Category: "cleaning",
		Name:     "coordinates in study area",
		Status:   StatusPass,
		Message:  englishPrinter.Sprintf("all %d cleaned records are inside the study bounding box", len(incidents)),
	}
}

func checkCompleteness(tracts []model.ClassifiedTract) Check {
	incomplete := 0
	for _, t := range tracts {
		if t.GEOID == "" ||
			t.BivariateClass < 1 || t.BivariateClass > 9 ||
			!t.DensityTercile.Valid() || !t.TimeTercile.Valid() ||
			t.NearestFacility == "" {
			incomplete++
		}
	}
	if incomplete > 0 {
		return Check{
			Category: "classification",
			Name:     "tract completeness",
			Status:   StatusFail,
			Message:  englishPrinter.Sprintf("%d of %d tracts are missing a class, tercile, or facility", incomplete, len(tracts)),
		}
	}
	return Check{
		Category: "classification",
		Name:     "tract completeness",
		Status:   StatusPass,
		Message:  englishPrinter.Sprintf("all %d tracts fully classified", len(tracts)),
	}
}

func checkClassCoverage(tracts []model.ClassifiedTract) Check {
	seen := make(map[int]bool)
	for _, t := range tracts {
		seen[t.BivariateClass] = true
	}
	missing := 0
	for class := 1; class <= 9; class++ {
		if !seen[class] {
			missing++
		}
	}
	if missing > 0 {
		// A sparse matrix is plausible on small inputs, so this only warns.
		return Check{
			Category: "classification",
			Name:     "bivariate class coverage",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d of 9 bivariate classes have no tracts", missing),
		}
	}
	return Check{
		Category: "classification",
		Name:     "bivariate class coverage",
		Status:   StatusPass,
		Message:  "all 9 bivariate classes are populated",
	}
}

func densityTercile(t model.ClassifiedTract) model.Tercile { return t.DensityTercile }
func timeTercile(t model.ClassifiedTract) model.Tercile    { return t.TimeTercile }

func checkTercileBalance(name string, tracts []model.ClassifiedTract, tolerancePts float64, tier func(model.ClassifiedTract) model.Tercile) Check {
	if len(tracts) == 0 {
		return Check{Category: "classification", Name: name + " balanced", Status: StatusFail, Message: "no classified tracts"}
	}

	counts := map[model.Tercile]int{}
	for _, t := range tracts {
		counts[tier(t)]++
	}
	minShare, maxShare := 100.0, 0.0
	for _, tercile := range []model.Tercile{model.TercileLow, model.TercileMedium, model.TercileHigh} {
		share := float64(counts[tercile]) / float64(len(tracts)) * 100
		if share < minShare {
			minShare = share
		}
		if share > maxShare {
			maxShare = share
		}
	}

	spread := maxShare - minShare
	msg := fmt.Sprintf("%s spread is %.1f points (tolerance %.1f)", name, spread, tolerancePts)
	if spread > tolerancePts {
		return Check{Category: "classification", Name: name + " balanced", Status: StatusWarn, Message: msg}
	}
	return Check{Category: "classification", Name: name + " balanced", Status: StatusPass, Message: msg}
}

func checkNoDefaults(count int) Check {
	if count > 0 {
		return Check{
			Category: "classification",
			Name:     "no defaulted classes",
			Status:   StatusFail,
			Message:  englishPrinter.Sprintf("%d tracts fell back to the default class", count),
		}
	}
	return Check{
		Category: "classification",
		Name:     "no defaulted classes",
		Status:   StatusPass,
		Message:  "no tracts fell back to the default class",
	}
}
