package indicator

import (
	"math"

	"github.com/newthinker/stocktrack/internal/core"
)

// Cross compares series a against series b across two consecutive bars.
// a1, b1 are the earlier bar, a0, b0 the later one.
//
// Up: a was at or below b and is now strictly above.
// Down: a was at or above b and is now strictly below.
// The earlier bar must be defined on both sides; a NaN on the later bar
// fails both strict comparisons.
func Cross(a1, b1, a0, b0 float64) core.Direction {
	if !finite(a1) || !finite(b1) {
		return core.DirectionNone
	}

	switch {
	case a1 <= b1 && a0 > b0:
		return core.DirectionUp
	case a1 >= b1 && a0 < b0:
		return core.DirectionDown
	default:
		return core.DirectionNone
	}
}

// CrossAt evaluates Cross on a and b between index i-1 and i.
func CrossAt(a, b []float64, i int) core.Direction {
	if i < 1 || i >= len(a) || i >= len(b) {
		return core.DirectionNone
	}
	return Cross(a[i-1], b[i-1], a[i], b[i])
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
