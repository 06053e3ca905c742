package loader

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// TractsFromShapefile reads census tract boundaries from a TIGER/Line
// shapefile, for runs that skip the GeoJSON preprocessing step. Area comes
// from the ALAND attribute.
func TractsFromShapefile(path string) ([]model.Tract, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var tracts []model.Tract
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		geoid := model.NormalizeGEOID(attr("geoid"))
		if geoid == "" {
			skipped++
			continue
		}

		var area float64
		if aland, err := strconv.ParseFloat(attr("aland"), 64); err == nil {
			area = aland / sqMetersPerSqMile
		}

		tracts = append(tracts, model.Tract{
			GEOID:    geoid,
			TractCE:  attr("tractce"),
			Name:     attr("name"),
			AreaSqMi: area,
			Geometry: g,
		})
	}

	if skipped > 0 {
		zap.L().Warn("skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(tracts) == 0 {
		return nil, eris.Errorf("loader: shapefile %s yielded no tracts", path)
	}

	zap.L().Info("tract boundaries loaded from shapefile",
		zap.String("path", path), zap.Int("tracts", len(tracts)))
	return tracts, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile parts wind outer rings clockwise and holes counter-clockwise; a
// hole part attaches to the most recent outer ring.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if len(polys) == 0 || !xy.IsRingCounterClockwise(geom.XY, flat) {
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(ring); err != nil {
				zap.L().Debug("skipping malformed outer ring", zap.Int32("part", i), zap.Error(err))
				continue
			}
			polys = append(polys, poly)
			continue
		}
		if err := polys[len(polys)-1].Push(ring); err != nil {
			zap.L().Debug("skipping malformed hole ring", zap.Int32("part", i), zap.Error(err))
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("skipping malformed polygon part", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
