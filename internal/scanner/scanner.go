// Package scanner runs the crossover alert over a set of symbols: fetch
// candles, evaluate the strategy on the last two closed candles, and notify
// at most once per candle using the dedup store.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/collector"
	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/dedup"
	"github.com/newthinker/stocktrack/internal/metrics"
	"github.com/newthinker/stocktrack/internal/notifier"
	"github.com/newthinker/stocktrack/internal/strategy"
)

// History records alerts after they are delivered
type History interface {
	Save(ctx context.Context, alert core.Alert) error
}

// Archiver stores finished reports
type Archiver interface {
	Save(ctx context.Context, strategy string, at time.Time, report any) (string, error)
}

// Scanner evaluates one strategy over the configured symbols
type Scanner struct {
	cfg      Config
	strategy strategy.Strategy
	source   collector.CandleSource
	store    dedup.Store
	notifier notifier.Notifier
	logger   *zap.Logger

	history History
	archive Archiver
	metrics *metrics.Registry
	now     func() time.Time

	locks keyLocks
}

// New creates a scanner. The collaborators are required; history, archive
// and metrics are attached with the Set* methods.
func New(cfg Config, strat strategy.Strategy, source collector.CandleSource, store dedup.Store, n notifier.Notifier, logger *zap.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil || source == nil || store == nil || n == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("scanner: strategy, candle source, dedup store and notifier are required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scanner{
		cfg:      cfg,
		strategy: strat,
		source:   source,
		store:    store,
		notifier: n,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetHistory attaches the alert history
func (s *Scanner) SetHistory(h History) { s.history = h }

// SetArchive attaches a report archive
func (s *Scanner) SetArchive(a Archiver) { s.archive = a }

// SetMetrics attaches the metrics registry
func (s *Scanner) SetMetrics(m *metrics.Registry) { s.metrics = m }

// Config returns the scanner configuration
func (s *Scanner) Config() Config { return s.cfg }

// Strategy returns the evaluated strategy
func (s *Scanner) Strategy() strategy.Strategy { return s.strategy }

// Scan runs one pass over all symbols in order. Per-symbol failures are
// recorded in the report; only cancellation of ctx is returned as an error.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	report := &Report{
		Strategy: s.strategy.Name(),
		Started:  s.now(),
		Results:  make([]SymbolResult, 0, len(s.cfg.Symbols)),
	}

	s.logger.Debug("scan started",
		zap.String("strategy", report.Strategy),
		zap.Int("symbols", len(s.cfg.Symbols)),
		zap.String("timeframe", s.cfg.Timeframe),
	)

	for _, symbol := range s.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			report.Finished = s.now()
			s.recordScan(report, "canceled")
			return report, err
		}

		res := s.scanSymbol(ctx, symbol)
		report.Results = append(report.Results, res)

		if s.metrics != nil {
			s.metrics.RecordSymbol(report.Strategy, string(res.Outcome))
		}
	}

	report.Finished = s.now()
	s.recordScan(report, report.Status())

	if s.archive != nil {
		path, err := s.archive.Save(ctx, report.Strategy, report.Started, report)
		if err != nil {
			s.logger.Warn("failed to archive scan report", zap.Error(err))
		} else {
			s.logger.Debug("scan report archived", zap.String("path", path))
		}
	}

	s.logger.Info("scan finished",
		zap.String("strategy", report.Strategy),
		zap.Int("notified", report.Count(OutcomeNotified)),
		zap.Int("suppressed", report.Count(OutcomeSuppressed)),
		zap.Int("skipped", report.Count(OutcomeSkipped)),
		zap.Int("failed", report.Count(OutcomeFailed)),
		zap.Duration("duration", report.Finished.Sub(report.Started)),
	)

	return report, nil
}

func (s *Scanner) recordScan(report *Report, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordScan(report.Strategy, status,
		report.Finished.Sub(report.Started).Seconds(), report.Finished.Unix())
}

// scanSymbol processes one symbol. A panic is confined to the symbol.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (res SymbolResult) {
	res = SymbolResult{Symbol: symbol, Timeframe: s.cfg.Timeframe}
	log := s.logger.With(zap.String("symbol", symbol), zap.String("timeframe", s.cfg.Timeframe))

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error("symbol scan panicked", zap.Any("panic", r))
		}
	}()

	fail := func(msg string, err error) SymbolResult {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		log.Error(msg, zap.Error(err))
		return res
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	candles, err := s.source.FetchCandles(fetchCtx, symbol, s.cfg.Timeframe, s.cfg.Limit())
	cancel()
	if err != nil {
		return fail("candle fetch failed", err)
	}
	res.Candles = len(candles)

	if len(candles) < s.strategy.MinBars() {
		res.Outcome = OutcomeSkipped
		log.Debug("not enough candles", zap.Int("have", len(candles)), zap.Int("need", s.strategy.MinBars()))
		return res
	}

	eval, err := s.strategy.Evaluate(candles)
	if errors.Is(err, core.ErrInsufficientData) {
		res.Outcome = OutcomeSkipped
		return res
	}
	if err != nil {
		return fail("strategy evaluation failed", err)
	}

	res.CloseTime = eval.Last.CloseTime
	res.Price = eval.Last.Close

	key := core.DedupKey(s.strategy.Name(), symbol, s.cfg.Timeframe)
	unlock := s.locks.lock(key)
	defer unlock()

	lastSent, found, err := s.store.Get(ctx, key)
	if err != nil {
		return fail("dedup read failed", core.WrapError(core.ErrDedupStore, err))
	}
	if found {
		res.LastNotified = lastSent
	}

	if !eval.Direction.Crossed() {
		res.Outcome = OutcomeNoSignal
		return res
	}
	res.Direction = eval.Direction

	if found && lastSent == eval.Last.CloseTime {
		res.Outcome = OutcomeSuppressed
		log.Debug("cross already notified", zap.Int64("close_time", lastSent))
		return res
	}

	alert := core.Alert{
		ID:        uuid.NewString(),
		Strategy:  s.strategy.Name(),
		Symbol:    symbol,
		Timeframe: s.cfg.Timeframe,
		Direction: eval.Direction,
		Price:     eval.Last.Close,
		CloseTime: eval.Last.CloseTime,
		Message:   FormatMessage(s.strategy.Tag(), eval.Direction, symbol, eval.Last.Close, s.cfg.Timeframe),
		SentAt:    s.now(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	err = s.notifier.Send(sendCtx, alert)
	cancel()
	if err != nil {
		s.recordNotification(alert, "failed")
		return fail("notification failed", core.WrapError(core.ErrNotifierFailed, err))
	}
	s.recordNotification(alert, "sent")

	// The alert is out; a failed write here means the next pass may repeat it.
	if err := s.store.Set(ctx, key, eval.Last.CloseTime); err != nil {
		res.AlertID = alert.ID
		return fail("dedup write failed after notification", core.WrapError(core.ErrDedupStore, err))
	}

	if s.history != nil {
		if err := s.history.Save(ctx, alert); err != nil {
			log.Warn("failed to record alert", zap.Error(err))
		}
	}

	res.Outcome = OutcomeNotified
	res.AlertID = alert.ID
	log.Info("crossover notified",
		zap.String("direction", string(alert.Direction)),
		zap.Float64("price", alert.Price),
		zap.Int64("close_time", alert.CloseTime),
	)
	return res
}

func (s *Scanner) recordNotification(alert core.Alert, status string) {
	if s.metrics != nil {
		s.metrics.RecordNotification(alert.Strategy, string(alert.Direction), status)
	}
}

// FormatMessage renders "[TAG] DIR SYMBOL @ PRICE TF=TIMEFRAME" with the
// price fixed to four decimals. Rounding applies to the exact binary value
// of price, so 0.00015 renders as 0.0001.
func FormatMessage(tag string, dir core.Direction, symbol string, price float64, timeframe string) string {
	return fmt.Sprintf("[%s] %s %s @ %s TF=%s",
		tag, dir, symbol, strconv.FormatFloat(price, 'f', 4, 64), timeframe)
}
