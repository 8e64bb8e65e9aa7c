package history

import "math"

// PercentChange returns the percent change from historical to current,
// measured against the magnitude of the baseline. ok is false when the change
// is undefined: a zero or non-finite baseline, or a non-finite current value.
func PercentChange(current, historical float64) (float64, bool) {
	if historical == 0 || math.IsNaN(historical) || math.IsInf(historical, 0) {
		return 0, false
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return 0, false
	}
	return (current - historical) / math.Abs(historical) * 100, true
}
