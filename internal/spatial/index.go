package spatial

import "github.com/twpayne/go-geom"

// Grid is a uniform-grid bounding-box index over a set of geometries. It
// replaces the naive all-polygons scan for point queries: a lookup returns
// only the geometries whose bounding box covers the query point's cell.
// Candidates still need an exact containment test.
type Grid struct {
	minX, minY float64
	cellW, cellH float64
	nx, ny     int
	cells      [][]int
	bounds     []*geom.Bounds
}

// defaultGridDim keeps cells near the size of a single tract for
// city-scale layers.
const defaultGridDim = 64

// NewGrid indexes the geometries. Nil geometries are skipped (they can never
// match). dim is the grid resolution per axis; dim <= 0 uses a default.
func NewGrid(geoms []geom.T, dim int) *Grid {
	if dim <= 0 {
		dim = defaultGridDim
	}

	g := &Grid{nx: dim, ny: dim, bounds: make([]*geom.Bounds, len(geoms))}

	// Overall extent.
	first := true
	for i, gm := range geoms {
		if gm == nil {
			continue
		}
		b := gm.Bounds()
		g.bounds[i] = b
		if first {
			g.minX, g.minY = b.Min(0), b.Min(1)
			g.cellW, g.cellH = b.Max(0), b.Max(1)
			first = false
			continue
		}
		if b.Min(0) < g.minX {
			g.minX = b.Min(0)
		}
		if b.Min(1) < g.minY {
			g.minY = b.Min(1)
		}
		if b.Max(0) > g.cellW {
			g.cellW = b.Max(0)
		}
		if b.Max(1) > g.cellH {
			g.cellH = b.Max(1)
		}
	}
	if first {
		// No geometries; every lookup misses.
		g.cells = make([][]int, dim*dim)
		return g
	}

	// cellW/cellH currently hold maxX/maxY; convert to cell sizes.
	g.cellW = (g.cellW - g.minX) / float64(dim)
	g.cellH = (g.cellH - g.minY) / float64(dim)
	if g.cellW <= 0 {
		g.cellW = 1
	}
	if g.cellH <= 0 {
		g.cellH = 1
	}

	g.cells = make([][]int, dim*dim)
	for i, b := range g.bounds {
		if b == nil {
			continue
		}
		x0, y0 := g.cellAt(b.Min(0), b.Min(1))
		x1, y1 := g.cellAt(b.Max(0), b.Max(1))
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				idx := cy*dim + cx
				g.cells[idx] = append(g.cells[idx], i)
			}
		}
	}
	return g
}

func (g *Grid) cellAt(x, y float64) (int, int) {
	cx := int((x - g.minX) / g.cellW)
	cy := int((y - g.minY) / g.cellH)
	if cx < 0 {
		cx = 0
	}
	if cx >= g.nx {
		cx = g.nx - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= g.ny {
		cy = g.ny - 1
	}
	return cx, cy
}

// Candidates returns the indices of geometries whose bounding box may cover
// the point. Out-of-extent points return nil.
func (g *Grid) Candidates(x, y float64) []int {
	if len(g.bounds) == 0 {
		return nil
	}
	cx, cy := g.cellAt(x, y)
	var out []int
	for _, i := range g.cells[cy*g.nx+cx] {
		b := g.bounds[i]
		if x < b.Min(0) || x > b.Max(0) || y < b.Min(1) || y > b.Max(1) {
			continue
		}
		out = append(out, i)
	}
	return out
}
