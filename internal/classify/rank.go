// Package classify implements rank-based binning and the 3×3 bivariate
// classification combining violence density and transport time.
package classify

import (
	"math"
	"sort"
)

// PercentileRanks returns each value's percentile rank in (0, 1], using
// average ranks for ties (matching the rank(pct=true) convention the
// published figures were produced with).
func PercentileRanks(values []float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		// Ranks are 1-based; ties share the group's average rank.
		avgRank := float64(start+1+end) / 2
		for j := start; j < end; j++ {
			out[idx[j]] = avgRank / float64(n)
		}
		start = end
	}
	return out
}

// Round3 rounds to three decimals, the precision carried in output datasets.
func Round3(v float64) float64 { return roundTo(v, 1000) }

// Round1 rounds to one decimal.
func Round1(v float64) float64 { return roundTo(v, 10) }

func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
