package collector

import (
	"context"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string

	// Timeout bounds each HTTP request. Zero leaves requests bounded only
	// by the caller's context.
	Timeout time.Duration
}

// CandleSource fetches recent candles for a symbol.
type CandleSource interface {
	Name() string

	// FetchCandles returns up to limit candles for symbol at the given
	// timeframe, oldest first. The final candle is normally still forming.
	// A non-success upstream response yields core.ErrUpstreamFetch.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error)
}
