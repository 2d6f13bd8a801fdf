// Package binance fetches spot klines from the Binance REST API.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/newthinker/stocktrack/internal/collector"
	"github.com/newthinker/stocktrack/internal/core"
)

var _ collector.CandleSource = (*Binance)(nil)

// Binance implements collector.CandleSource on the spot klines endpoint
type Binance struct {
	cli *gobinance.Client
}

// New creates a Binance candle source. An empty BaseURL uses the public
// production endpoint.
func New(cfg collector.Config) *Binance {
	cli := gobinance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		cli.BaseURL = cfg.BaseURL
	}
	cli.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Binance{cli: cli}
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchCandles requests /api/v3/klines?symbol=..&interval=..&limit=..
// The timeframe is passed through unchanged.
func (b *Binance) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	svc := b.cli.NewKlinesService().Symbol(symbol).Interval(timeframe)
	if limit > 0 {
		svc.Limit(limit)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			return nil, core.WrapError(core.ErrUpstreamFetch,
				fmt.Errorf("klines %s %s: code %d: %s", symbol, timeframe, apiErr.Code, apiErr.Message))
		}
		return nil, core.WrapError(core.ErrUpstreamFetch, fmt.Errorf("klines %s %s: %w", symbol, timeframe, err))
	}

	return convertKlines(klines)
}

func convertKlines(klines []*gobinance.Kline) ([]core.Candle, error) {
	candles := make([]core.Candle, len(klines))
	for i, k := range klines {
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing high %q: %w", k.High, err)
		}
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing close %q: %w", k.Close, err)
		}
		candles[i] = core.Candle{
			OpenTime:  k.OpenTime,
			High:      high,
			Close:     closePrice,
			CloseTime: k.CloseTime,
		}
	}
	return candles, nil
}
