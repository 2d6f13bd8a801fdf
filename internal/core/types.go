package core

import (
	"fmt"
	"time"
)

// Candle is one closed or in-progress kline. Times are epoch milliseconds
// as reported by the exchange.
type Candle struct {
	OpenTime  int64
	High      float64
	Close     float64
	CloseTime int64
}

// Highs extracts the high series from candles
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Closes extracts the close series from candles
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Direction is the side of a detected crossover
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Crossed reports whether d is an actual cross
func (d Direction) Crossed() bool {
	return d == DirectionUp || d == DirectionDown
}

// Alert is a notification emitted for a crossover on a closed candle
type Alert struct {
	ID        string    `json:"id"`
	Strategy  string    `json:"strategy"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	CloseTime int64     `json:"close_time"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// DedupKey builds the key under which the last notified close time for
// (strategy, symbol, timeframe) is stored.
func DedupKey(strategy, symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s:%s:lastTs", strategy, symbol, timeframe)
}
