package scanner

import (
	"fmt"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

const (
	DefaultTimeframe      = "15m"
	DefaultLookback       = 300
	DefaultMargin         = 5
	DefaultRequestTimeout = 10 * time.Second
)

// Config is everything one scan pass needs to know. It is built once by
// the caller and handed to New.
type Config struct {
	Symbols   []string
	Timeframe string

	// Lookback+Margin candles are requested per symbol
	Lookback int
	Margin   int

	// RequestTimeout bounds each candle fetch and each notification
	RequestTimeout time.Duration
}

// DefaultConfig returns the single-symbol ETHUSDT 15m setup
func DefaultConfig() Config {
	return Config{
		Symbols:        []string{"ETHUSDT"},
		Timeframe:      DefaultTimeframe,
		Lookback:       DefaultLookback,
		Margin:         DefaultMargin,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Limit is the number of candles requested per symbol
func (c Config) Limit() int {
	return c.Lookback + c.Margin
}

// Validate checks the config is usable
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("scanner: no symbols"))
	}
	if c.Timeframe == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("scanner: timeframe"))
	}
	if c.Lookback <= 0 || c.Margin < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scanner: lookback %d and margin %d", c.Lookback, c.Margin))
	}
	if c.RequestTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scanner: request timeout must be positive, got %s", c.RequestTimeout))
	}
	return nil
}
