// Package rvc implements the resistance-versus-trend crossover alert.
//
// Resistance R = HHV(high, hhvPeriod) - close measures how far price sits
// below its recent rolling high. Trend G = close - SMA(close, smaPeriod)
// measures the distance from the long moving average. The strategy fires
// when R crosses G on the most recent closed candle.
package rvc

import (
	"fmt"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/indicator"
	"github.com/newthinker/stocktrack/internal/strategy"
)

const (
	Name = "rvc010"
	Tag  = "RVC010"

	DefaultHHVPeriod = 50
	DefaultSMAPeriod = 200
	DefaultMinBars   = 210
)

// RVC is the resistance/trend crossover strategy
type RVC struct {
	hhvPeriod int
	smaPeriod int
	minBars   int
}

// New creates the strategy with the given windows
func New(hhvPeriod, smaPeriod int) *RVC {
	return &RVC{
		hhvPeriod: hhvPeriod,
		smaPeriod: smaPeriod,
		minBars:   DefaultMinBars,
	}
}

// Default creates the strategy with HHV(50), SMA(200) and 210 minimum bars
func Default() *RVC {
	return New(DefaultHHVPeriod, DefaultSMAPeriod)
}

func (s *RVC) Name() string { return Name }

func (s *RVC) Tag() string { return Tag }

func (s *RVC) Description() string {
	return fmt.Sprintf("HHV%d-Close vs Close-MA%d crossover", s.hhvPeriod, s.smaPeriod)
}

func (s *RVC) MinBars() int { return s.minBars }

func (s *RVC) Init(cfg strategy.Config) error {
	if v, ok := strategy.IntParam(cfg.Params, "hhv_period"); ok {
		s.hhvPeriod = v
	}
	if v, ok := strategy.IntParam(cfg.Params, "sma_period"); ok {
		s.smaPeriod = v
	}
	if v, ok := strategy.IntParam(cfg.Params, "min_bars"); ok {
		s.minBars = v
	}

	if s.hhvPeriod <= 0 || s.smaPeriod <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rvc: periods must be positive, got hhv=%d sma=%d", s.hhvPeriod, s.smaPeriod))
	}
	return nil
}

// Series computes the resistance and trend series aligned with candles
func (s *RVC) Series(candles []core.Candle) (resistance, trend []float64) {
	highs := core.Highs(candles)
	closes := core.Closes(candles)

	resistance = indicator.Sub(indicator.HHV(highs, s.hhvPeriod), closes)
	trend = indicator.Sub(closes, indicator.SMA(closes, s.smaPeriod))
	return resistance, trend
}

func (s *RVC) Evaluate(candles []core.Candle) (strategy.Evaluation, error) {
	last, prev, ok := strategy.ClosedPair(len(candles))
	if !ok || len(candles) < s.minBars {
		return strategy.Evaluation{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("have %d candles, need %d", len(candles), s.minBars))
	}

	r, g := s.Series(candles)

	return strategy.Evaluation{
		Direction: indicator.Cross(r[prev], g[prev], r[last], g[last]),
		Last:      candles[last],
		Prev:      candles[prev],
		A0:        r[last],
		A1:        r[prev],
		B0:        g[last],
		B1:        g[prev],
	}, nil
}
