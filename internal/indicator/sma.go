package indicator

import "math"

// SMA calculates Simple Moving Average.
// The result is aligned with prices; positions before the window fills are NaN.
func SMA(prices []float64, period int) []float64 {
	result := nanSeries(len(prices))
	if period <= 0 {
		return result
	}

	var sum float64
	for i := 0; i < len(prices); i++ {
		sum += prices[i]
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}

	return result
}

// EMA calculates Exponential Moving Average, seeded with the SMA of the
// first period values. Aligned with prices like SMA.
func EMA(prices []float64, period int) []float64 {
	result := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return result
	}

	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result[period-1] = ema

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result[i] = ema
	}

	return result
}

// Sub returns a[i] - b[i]. NaN on either side propagates.
func Sub(a, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] - b[i]
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
