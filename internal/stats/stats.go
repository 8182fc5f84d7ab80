// Package stats provides the numeric-sequence reducers shared by all
// metric aggregators. Every function is pure and sorts its own input
// copy; callers are expected to hand in cleaned, non-negative values.
package stats

import "sort"

// Percentile returns the p-th percentile (0..100) of values using
// nearest-rank semantics: sort ascending, index ceil(p/100*n)-1 clamped
// to the valid range. The second return is false for empty input so
// callers can distinguish "no value" from a computed zero.
func Percentile(values []float64, p float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(n)
	idx := int(rank)
	if rank > float64(idx) {
		idx++ // ceil
	}
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx], true
}

// Median returns the 50th percentile of values
func Median(values []float64) (float64, bool) {
	return Percentile(values, 50)
}

// Average returns the arithmetic mean of values
func Average(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Gini computes the discrete Gini coefficient over per-actor totals.
// Dispersion is undefined for fewer than two actors, in which case the
// second return is false. An all-zero population is perfect equality.
func Gini(totals []float64) (float64, bool) {
	n := len(totals)
	if n < 2 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, totals)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0, true
	}
	fn := float64(n)
	return 2*weighted/(fn*sum) - (fn+1)/fn, true
}

// PeakBucket returns the index of the bucket with the highest count,
// breaking ties toward the earliest bucket. False when every bucket is
// empty.
func PeakBucket(counts []int) (int, bool) {
	peak, best := -1, 0
	for i, c := range counts {
		if c > best {
			best = c
			peak = i
		}
	}
	if peak < 0 {
		return 0, false
	}
	return peak, true
}
