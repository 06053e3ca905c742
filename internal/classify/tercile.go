package classify

import (
	"sort"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
)

// Terciles bins values into three rank-based tiers of (as near as integer
// division allows) equal size. Ties are broken by first-occurrence order, so
// bin sizes stay balanced even when many values are identical, which is the
// norm here since most tracts record zero incidents. Binning on raw values
// instead of ranks would collapse those tracts into one oversized bin.
func Terciles(values []float64) []model.Tercile {
	n := len(values)
	if n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Stable: equal values keep input order, making cut points deterministic.
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]model.Tercile, n)
	for pos, i := range idx {
		out[i] = model.Tercile(1 + pos*3/n)
	}
	return out
}
