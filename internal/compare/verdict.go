package compare

import "math"

// Tolerances for treating two values as the same.
const (
	DefaultTACTolerance  = 5.0  // percentage points
	DefaultSizeTolerance = 0.05 // relative
)

// withinAbs reports |a-b| <= tol.
func withinAbs(tol float64) func(a, b float64) bool {
	return func(a, b float64) bool { return math.Abs(a-b) <= tol }
}

// withinRel reports |a-b| <= tol * max(|a|,|b|).
func withinRel(tol float64) func(a, b float64) bool {
	return func(a, b float64) bool {
		m := math.Max(math.Abs(a), math.Abs(b))
		return math.Abs(a-b) <= tol*m
	}
}

// lowerIsBetter decides a numeric row where the lowest value wins.
// Values within tolerance of the minimum are "same". A backend wins only
// when it is strictly lowest and every other value is outside tolerance.
// Unknown values make the row "different" unless every value is unknown.
func lowerIsBetter(ids []string, vals []float64, known []bool, same func(a, b float64) bool) string {
	n := 0
	minIdx := -1
	for i := range vals {
		if !known[i] {
			continue
		}
		n++
		if minIdx < 0 || vals[i] < vals[minIdx] {
			minIdx = i
		}
	}
	if n == 0 {
		return VerdictSame
	}
	if n < len(vals) {
		return VerdictDifferent
	}

	allSame := true
	othersOutside := true
	for i := range vals {
		if i == minIdx {
			continue
		}
		if same(vals[i], vals[minIdx]) {
			othersOutside = false
		} else {
			allSame = false
		}
	}
	switch {
	case allSame:
		return VerdictSame
	case othersOutside:
		return Better(ids[minIdx])
	default:
		return VerdictDifferent
	}
}

// trueIsBetter decides a boolean row: all equal is "same", a single true
// backend wins, anything else is "different".
func trueIsBetter(ids []string, vals []bool) string {
	trues := 0
	winner := ""
	for i, v := range vals {
		if v {
			trues++
			winner = ids[i]
		}
	}
	switch {
	case trues == 0 || trues == len(vals):
		return VerdictSame
	case trues == 1:
		return Better(winner)
	default:
		return VerdictDifferent
	}
}

// equalValues decides a row that only needs agreement.
func equalValues(vals []string) string {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return VerdictDifferent
		}
	}
	return VerdictSame
}
