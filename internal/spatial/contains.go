// Package spatial provides in-memory point-in-polygon containment, centroid
// computation, and the incident-to-tract assigner.
package spatial

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Contains reports whether the geometry contains the coordinate, with
// point-strictly-within semantics. Polygon holes are respected; for a
// MultiPolygon any member polygon may contain the point. Non-areal
// geometries contain nothing.
func Contains(g geom.T, coord geom.Coord) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, coord)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), coord) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func polygonContains(p *geom.Polygon, coord geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), coord, p.LinearRing(0).FlatCoords()) {
		return false
	}
	// Inside the shell; holes exclude.
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), coord, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Centroid returns the area centroid of a polygonal geometry.
func Centroid(g geom.T) (geom.Coord, bool) {
	switch t := g.(type) {
	case *geom.Point:
		return t.Coords(), true
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, false
		}
		return xy.PolygonsCentroid(t), true
	case *geom.MultiPolygon:
		return multiPolygonCentroid(t)
	default:
		return nil, false
	}
}

// multiPolygonCentroid is the area-weighted mean of member centroids.
func multiPolygonCentroid(mp *geom.MultiPolygon) (geom.Coord, bool) {
	var x, y, total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		area := p.Area()
		if area < 0 {
			area = -area
		}
		if area == 0 {
			continue
		}
		c := xy.PolygonsCentroid(p)
		x += c[0] * area
		y += c[1] * area
		total += area
	}
	if total == 0 {
		return nil, false
	}
	return geom.Coord{x / total, y / total}, true
}
