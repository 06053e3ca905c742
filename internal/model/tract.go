package model

import "github.com/twpayne/go-geom"

// Tract is a census tract boundary record.
type Tract struct {
	GEOID    string
	TractCE  string
	Name     string
	AreaSqMi float64
	Geometry geom.T
}

// Demographics is one tract's census attribute record. MedianIncome is nil
// when the census suppressed the estimate (the -666666666 sentinel in raw
// exports); it is never carried as a magic number.
type Demographics struct {
	GEOID           string   `csv:"GEOID"`
	TotalPopulation int      `csv:"total_population"`
	PctBlack        float64  `csv:"pct_black"`
	PctWhite        float64  `csv:"pct_white"`
	PctAsian        float64  `csv:"pct_asian"`
	PctPoverty      float64  `csv:"pct_poverty"`
	MedianIncome    *float64 `csv:"median_household_income"`
}

// TractMetrics is the aggregated incident summary for one tract, produced by
// the aggregator and extended by the transport resolver and classifier. One
// row per tract, including tracts with zero incidents.
type TractMetrics struct {
	GEOID    string  `csv:"GEOID"`
	TractCE  string  `csv:"TRACTCE"`
	Name     string  `csv:"NAME"`
	AreaSqMi float64 `csv:"area_sq_mi"`

	TotalPopulation int      `csv:"total_population"`
	PctBlack        float64  `csv:"pct_black"`
	PctPoverty      float64  `csv:"pct_poverty"`
	MedianIncome    *float64 `csv:"median_household_income"`

	TotalIncidents  int      `csv:"total_shootings"`
	FatalIncidents  int      `csv:"fatal_shootings"`
	RecentIncidents int      `csv:"recent_shootings"`
	IncidentsPerYear float64 `csv:"shootings_per_year"`
	// FatalityRate is fatal/total in percent; nil (not zero) when the tract
	// has no incidents.
	FatalityRate *float64 `csv:"fatality_rate"`
	AvgVictimAge *float64 `csv:"avg_victim_age"`
	PctMale      *float64 `csv:"pct_male"`
	PctOutside   *float64 `csv:"pct_outside"`

	DensityPerSqMi       float64 `csv:"shootings_per_sq_mi"`
	AnnualDensityPerSqMi float64 `csv:"annual_shootings_per_sq_mi"`
	// Per10kPop is explicitly zero for unpopulated tracts, never Inf/NaN.
	Per10kPop       float64 `csv:"shootings_per_10k_pop"`
	AnnualPer10kPop float64 `csv:"annual_shootings_per_10k"`

	DensityPercentile float64 `csv:"density_percentile"`
}

// TransportResult is the transport-time resolution for one tract.
type TransportResult struct {
	GEOID           string  `csv:"GEOID"`
	TimeToNearest   int     `csv:"time_to_nearest"`
	NearestFacility string  `csv:"nearest_trauma_center"`
	TimeCategory    string  `csv:"time_category"`
	TimePercentile  float64 `csv:"time_percentile"`
	WithinGoldenHour bool   `csv:"within_golden_hour"`
}

// ClassifiedTract is the final enriched row: metrics, transport, terciles and
// the bivariate class. This is the dataset downstream consumers join against.
type ClassifiedTract struct {
	TractMetrics
	TimeToNearest    int     `csv:"time_to_nearest"`
	NearestFacility  string  `csv:"nearest_trauma_center"`
	TimeCategory     string  `csv:"time_category"`
	TimePercentile   float64 `csv:"time_percentile"`
	WithinGoldenHour bool    `csv:"within_golden_hour"`

	DensityTercile Tercile `csv:"density_tercile"`
	TimeTercile    Tercile `csv:"time_tercile"`

	BivariateClass   int    `csv:"bivariate_class"`
	BivariateLabel   string `csv:"bivariate_label"`
	PriorityCategory string `csv:"priority_category"`
}
