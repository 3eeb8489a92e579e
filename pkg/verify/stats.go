package verify

import (
	"math"
	"slices"
)

// mad epsilon keeps the z-norm divisor nonzero for degenerate cohorts.
const sigmaEpsilon = 1e-6

// madToStd converts MAD to a standard-deviation estimate under a normal
// distribution.
const madToStd = 1.4826

// median averages the two middle values for even-length input. gonum's
// stat.Quantile does not interpolate on the Empirical kind, and the
// cohort math depends on the averaged convention, so this is hand-rolled.
func median(xs []float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mad is the median absolute deviation around the median.
func mad(xs []float64) float64 {
	m := median(xs)
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - m)
	}
	return median(devs)
}

// topKMedian is the median of the k highest scores. k is clamped to the
// number of scores.
func topKMedian(scores []float64, k int) float64 {
	if k > len(scores) {
		k = len(scores)
	}
	s := slices.Clone(scores)
	slices.Sort(s)
	return median(s[len(s)-k:])
}

// topK computes K = max(minK, round(frac*n)), clamped to n.
func topK(n int, frac float64, minK int) int {
	k := int(math.Round(frac * float64(n)))
	if k < minK {
		k = minK
	}
	if k > n {
		k = n
	}
	return k
}
