// Package cleanse standardizes raw incident records and validates their
// coordinates against the study-area bounding box.
package cleanse

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/config"
	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// raceLabels standardizes the single-letter race codes in source exports.
var raceLabels = map[string]string{
	"B": "Black",
	"W": "White",
	"H": "Hispanic",
	"A": "Asian",
	"I": "Other",
	"U": "Unknown",
	"":  "Unknown",
}

// dateLayouts are the timestamp formats seen across snapshot vintages.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"2006/01/02",
}

// ageGroup buckets a victim age the same way the published analyses do.
func ageGroup(age float64) string {
	switch {
	case age <= 17:
		return "0-17"
	case age <= 24:
		return "18-24"
	case age <= 34:
		return "25-34"
	case age <= 44:
		return "35-44"
	default:
		return "45+"
	}
}

// Clean standardizes raw incidents and drops records whose coordinates are
// null or outside the study bounding box. Dropped records are counted in the
// returned stats, never discarded silently. Records with unparseable dates
// are kept (their temporal fields stay zero) and counted.
func Clean(raw []model.RawIncident, bbox config.BBox) ([]model.Incident, model.CleanseStats) {
	log := zap.L().With(zap.String("component", "cleanse"))

	stats := model.CleanseStats{RawCount: len(raw)}
	out := make([]model.Incident, 0, len(raw))

	for _, r := range raw {
		if r.Lat == nil || r.Lng == nil {
			stats.NullCoordinates++
			continue
		}
		if !bbox.Contains(*r.Lat, *r.Lng) {
			stats.OutOfBounds++
			continue
		}

		inc := model.Incident{
			ObjectID: r.ObjectID,
			DCKey:    r.DCKey,
			Lat:      *r.Lat,
			Lng:      *r.Lng,
			Location: r.Location,
			District: r.District,
			Wound:    r.Wound,
		}

		if d, ok := parseDate(r.Date); ok {
			inc.Date = d
			inc.Year = d.Year()
			inc.Month = int(d.Month())
			inc.DayOfWeek = int(d.Weekday())
		} else {
			stats.NullDates++
		}
		if h, ok := parseHour(r.Time); ok {
			inc.Hour = &h
		}

		code := strings.ToUpper(strings.TrimSpace(r.Race))
		label, ok := raceLabels[code]
		if !ok {
			label = "Other"
		}
		inc.Race = label

		inc.IsMale = strings.EqualFold(strings.TrimSpace(r.Sex), "M")
		inc.IsFatal = toBool(r.Fatal)
		inc.IsOutside = toBool(r.Outside)
		inc.IsInside = toBool(r.Inside)
		inc.IsOfficerInvolved = toBool(r.OfficerInvolved)

		if age, err := strconv.ParseFloat(strings.TrimSpace(r.Age), 64); err == nil && age >= 0 {
			inc.Age = &age
			inc.AgeGroup = ageGroup(age)
		}

		out = append(out, inc)
	}

	stats.CleanCount = len(out)

	log.Info("incident cleaning complete",
		zap.Int("raw", stats.RawCount),
		zap.Int("clean", stats.CleanCount),
		zap.Int("null_coordinates", stats.NullCoordinates),
		zap.Int("out_of_bounds", stats.OutOfBounds),
		zap.Int("null_dates", stats.NullDates),
	)
	return out, stats
}

// toBool interprets the Y/N and 0/1 flag encodings both seen in exports.
func toBool(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "1", "TRUE":
		return true
	default:
		return false
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func parseHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, false
	}
	return t.Hour(), true
}

// YearSpan returns the inclusive number of calendar years covered by the
// incidents with parsed dates, and the most recent year. Zero incidents (or
// none with dates) yield (0, 0).
func YearSpan(incidents []model.Incident) (span, maxYear int) {
	minYear := 0
	for _, inc := range incidents {
		if inc.Year == 0 {
			continue
		}
		if minYear == 0 || inc.Year < minYear {
			minYear = inc.Year
		}
		if inc.Year > maxYear {
			maxYear = inc.Year
		}
	}
	if minYear == 0 {
		return 0, 0
	}
	return maxYear - minYear + 1, maxYear
}
