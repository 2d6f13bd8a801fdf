package ma_crossover

import (
	"fmt"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/indicator"
	"github.com/newthinker/stocktrack/internal/strategy"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Tag() string {
	return fmt.Sprintf("MA%d/%d", m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

// MinBars needs the slow window plus two closed bars and the open one
func (m *MACrossover) MinBars() int {
	return m.slowPeriod + 2
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	if fast, ok := strategy.IntParam(cfg.Params, "fast_period"); ok {
		m.fastPeriod = fast
	}
	if slow, ok := strategy.IntParam(cfg.Params, "slow_period"); ok {
		m.slowPeriod = slow
	}
	if m.fastPeriod <= 0 || m.slowPeriod <= m.fastPeriod {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("ma_crossover: need 0 < fast < slow, got %d/%d", m.fastPeriod, m.slowPeriod))
	}
	return nil
}

// Evaluate reports a golden cross (fast crosses above slow) as Up and a
// death cross as Down.
func (m *MACrossover) Evaluate(candles []core.Candle) (strategy.Evaluation, error) {
	last, prev, ok := strategy.ClosedPair(len(candles))
	if !ok || len(candles) < m.MinBars() {
		return strategy.Evaluation{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("have %d candles, need %d", len(candles), m.MinBars()))
	}

	prices := core.Closes(candles)
	fastMA := indicator.SMA(prices, m.fastPeriod)
	slowMA := indicator.SMA(prices, m.slowPeriod)

	return strategy.Evaluation{
		Direction: indicator.Cross(fastMA[prev], slowMA[prev], fastMA[last], slowMA[last]),
		Last:      candles[last],
		Prev:      candles[prev],
		A0:        fastMA[last],
		A1:        fastMA[prev],
		B0:        slowMA[last],
		B1:        slowMA[prev],
	}, nil
}
