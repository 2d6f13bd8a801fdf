package scanner

import (
	"time"

	"github.com/newthinker/stocktrack/internal/core"
)

// Outcome is what happened to one symbol in a scan pass
type Outcome string

const (
	OutcomeSkipped    Outcome = "skipped"    // not enough history
	OutcomeNoSignal   Outcome = "no_signal"  // evaluated, no cross
	OutcomeSuppressed Outcome = "suppressed" // cross already notified for this candle
	OutcomeNotified   Outcome = "notified"
	OutcomeFailed     Outcome = "failed"
)

// SymbolResult is the per-symbol line of a Report
type SymbolResult struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Outcome   Outcome `json:"outcome"`
	Candles   int     `json:"candles"`

	Direction core.Direction `json:"direction,omitempty"`
	CloseTime int64          `json:"close_time,omitempty"`
	Price     float64        `json:"price,omitempty"`

	// LastNotified is the dedup value read before this pass
	LastNotified int64  `json:"last_notified,omitempty"`
	AlertID      string `json:"alert_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Report summarises one scan pass
type Report struct {
	Strategy string         `json:"strategy"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Results  []SymbolResult `json:"results"`
}

// Count returns how many symbols ended with outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Status is "ok" when no symbol failed, "partial" otherwise
func (r *Report) Status() string {
	if r.Count(OutcomeFailed) > 0 {
		return "partial"
	}
	return "ok"
}
