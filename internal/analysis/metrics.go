package analysis

import "math"

// Growth and margin clamps keep model drivers inside a defensible range
// even when the reported history is noisy or incomplete.
const (
	minGrowth     = -0.10
	maxGrowth     = 0.40
	defaultGrowth = 0.08

	minMargin     = 0.05
	maxMargin     = 0.60
	defaultMargin = 0.22
)

// CAGR computes the compound annual growth rate over a most-recent-first
// revenue history. Histories with fewer than two usable points fall back to
// the default growth rate.
func CAGR(revenue []float64) float64 {
	if len(revenue) < 2 {
		return defaultGrowth
	}
	latest := revenue[0]
	earliest := revenue[len(revenue)-1]
	if earliest <= 0 || latest <= 0 {
		return defaultGrowth
	}
	years := float64(len(revenue) - 1)
	g := math.Pow(latest/earliest, 1/years) - 1
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return defaultGrowth
	}
	return clamp(g, minGrowth, maxGrowth)
}

// EBITDAMargin averages EBITDA over revenue across paired history years.
// Years with non-positive revenue are skipped.
func EBITDAMargin(revenue, ebitda []float64) float64 {
	n := len(revenue)
	if len(ebitda) < n {
		n = len(ebitda)
	}
	if n == 0 {
		return defaultMargin
	}

	var sum float64
	var count int
	for i := 0; i < n; i++ {
		if revenue[i] <= 0 {
			continue
		}
		sum += ebitda[i] / revenue[i]
		count++
	}
	if count == 0 {
		return defaultMargin
	}
	return clamp(sum/float64(count), minMargin, maxMargin)
}

// DebtToEBITDA computes leverage against the most recent EBITDA year.
// Zero or negative EBITDA yields zero rather than a blown-up ratio.
func DebtToEBITDA(totalDebt float64, ebitda []float64) float64 {
	if len(ebitda) == 0 || ebitda[0] <= 0 {
		return 0
	}
	if totalDebt <= 0 {
		return 0
	}
	return totalDebt / ebitda[0]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
