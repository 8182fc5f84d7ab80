// Package trend classifies the change between the first and second
// half of a time window.
package trend

// Direction tells the classifier which way an increase points
type Direction int

const (
	// LowerIsBetter suits durations and wait times
	LowerIsBetter Direction = iota
	// HigherIsBetter suits coverage and success rates
	HigherIsBetter
)

// Trend is the classification outcome
type Trend string

const (
	Improving Trend = "improving"
	Stable    Trend = "stable"
	Degrading Trend = "degrading"
)

// Classification requires at least this many data points across both
// halves; below it no trend is attempted.
const MinDataPoints = 4

// Percent change below this magnitude is classified as stable
const stableThresholdPct = 10.0

// Classify compares the first-half and second-half averages of a
// metric. total is the combined number of underlying data points. The
// second return is false when there is not enough data to classify or
// the baseline is zero.
func Classify(firstAvg, secondAvg float64, total int, dir Direction) (Trend, bool) {
	if total < MinDataPoints {
		return "", false
	}
	if firstAvg == 0 {
		return "", false
	}
	change := (secondAvg - firstAvg) / firstAvg * 100
	abs := change
	if abs < 0 {
		abs = -abs
	}
	if abs < stableThresholdPct {
		return Stable, true
	}
	increased := change > 0
	if (increased && dir == HigherIsBetter) || (!increased && dir == LowerIsBetter) {
		return Improving, true
	}
	return Degrading, true
}
