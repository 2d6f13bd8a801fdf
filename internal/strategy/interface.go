package strategy

import (
	"github.com/newthinker/stocktrack/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Evaluation is the outcome of evaluating a strategy on the last two
// closed candles of a window.
type Evaluation struct {
	Direction core.Direction
	Last      core.Candle // most recent closed candle
	Prev      core.Candle // the closed candle before Last

	// Series values at Last (A0, B0) and Prev (A1, B1)
	A0, A1 float64
	B0, B1 float64
}

// Strategy derives two series from a candle window and reports where they
// cross on the most recent closed candle.
type Strategy interface {
	// Name is the identifier used in dedup keys
	Name() string

	// Tag is the short label used in notification text
	Tag() string

	Description() string
	Init(cfg Config) error

	// MinBars is the smallest window Evaluate can work with
	MinBars() int

	// Evaluate inspects candles ordered oldest-first. The final candle is
	// treated as in-progress and ignored.
	Evaluate(candles []core.Candle) (Evaluation, error)
}

// ClosedPair returns the last two closed candles' indices. The final
// candle is the in-progress one.
func ClosedPair(n int) (last, prev int, ok bool) {
	if n < 3 {
		return 0, 0, false
	}
	return n - 2, n - 3, true
}

// IntParam reads an integer parameter that may have been decoded from YAML
// or JSON as int, int64 or float64.
func IntParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

