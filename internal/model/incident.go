package model

import "time"

// RawIncident is one shooting record as downloaded, before cleaning.
// Field names follow the open-data export schema.
type RawIncident struct {
	ObjectID        int64   `csv:"objectid"`
	DCKey           string  `csv:"dc_key"`
	Date            string  `csv:"date_"`
	Time            string  `csv:"time"`
	Lat             *float64 `csv:"lat"`
	Lng             *float64 `csv:"lng"`
	Location        string  `csv:"location"`
	District        string  `csv:"dist"`
	Race            string  `csv:"race"`
	Sex             string  `csv:"sex"`
	Age             string  `csv:"age"`
	Wound           string  `csv:"wound"`
	Latino          string  `csv:"latino"`
	Fatal           string  `csv:"fatal"`
	Outside         string  `csv:"outside"`
	Inside          string  `csv:"inside"`
	OfficerInvolved string  `csv:"officer_involved"`
}

// Incident is a cleaned shooting record. Immutable after cleaning; the tract
// assignment is an annotation attached by the assigner, not a mutation of the
// source fields.
type Incident struct {
	ObjectID  int64     `csv:"objectid"`
	DCKey     string    `csv:"dc_key"`
	Date      time.Time `csv:"date"`
	Year      int       `csv:"year"`
	Month     int       `csv:"month"`
	DayOfWeek int       `csv:"day_of_week"`
	Hour      *int      `csv:"hour"`

	Lat      float64 `csv:"lat"`
	Lng      float64 `csv:"lng"`
	Location string  `csv:"location"`
	District string  `csv:"dist"`

	Race     string   `csv:"race"`
	IsMale   bool     `csv:"is_male"`
	Age      *float64 `csv:"age"`
	AgeGroup string   `csv:"age_group"`

	Wound             string `csv:"wound"`
	IsFatal           bool   `csv:"is_fatal"`
	IsOutside         bool   `csv:"is_outside"`
	IsInside          bool   `csv:"is_inside"`
	IsOfficerInvolved bool   `csv:"is_officer_involved"`
}

// AssignedIncident is an incident annotated with its containing tract.
// TractGEOID is empty when the point matched no tract polygon.
type AssignedIncident struct {
	Incident
	TractGEOID string `csv:"tract_geoid"`
	TractName  string `csv:"tract_name"`
}

// Matched reports whether the incident fell inside a tract polygon.
func (a AssignedIncident) Matched() bool { return a.TractGEOID != "" }

// CleanseStats accounts for every record the cleaner rejected.
type CleanseStats struct {
	RawCount        int
	CleanCount      int
	NullCoordinates int
	OutOfBounds     int
	NullDates       int
}

// RetentionPct returns the share of raw records retained, in percent.
func (s CleanseStats) RetentionPct() float64 {
	if s.RawCount == 0 {
		return 0
	}
	return float64(s.CleanCount) / float64(s.RawCount) * 100
}
