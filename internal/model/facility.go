package model

import "github.com/twpayne/go-geom"

// Facility is a trauma center providing definitive care.
type Facility struct {
	Name  string  `csv:"name"`
	Level string  `csv:"trauma_level"`
	Lat   float64 `csv:"lat"`
	Lng   float64 `csv:"lng"`
}

// IsochroneRing is one (facility, time threshold) drive-time polygon. Rings
// for a facility are nested: each contains every ring with a smaller
// threshold.
type IsochroneRing struct {
	FacilityName string
	Minutes      int
	Geometry     geom.T
}

// BeyondCoverageFacility labels tracts outside every facility's largest ring.
const BeyondCoverageFacility = "Beyond coverage"
