package indicator

// HHV calculates the Highest High Value over a trailing window.
//
// A deque of indices is kept in decreasing value order. Each new index
// evicts every candidate it dominates (including equal values, so the most
// recent of equal highs stays resident), and the front is dropped once it
// leaves the window. The front is then the window maximum. Positions before
// the window fills are NaN.
func HHV(values []float64, period int) []float64 {
	result := nanSeries(len(values))
	if period <= 0 {
		return result
	}

	dq := make([]int, 0, period)
	for i, v := range values {
		for len(dq) > 0 && values[dq[len(dq)-1]] <= v {
			dq = dq[:len(dq)-1]
		}
		dq = append(dq, i)

		left := i - period + 1
		for len(dq) > 0 && dq[0] < left {
			dq = dq[1:]
		}
		if left >= 0 {
			result[i] = values[dq[0]]
		}
	}

	return result
}
