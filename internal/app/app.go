package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/metrics"
	"github.com/newthinker/stocktrack/internal/portfolio"
	"github.com/newthinker/stocktrack/internal/scanner"
)

// Scanner runs one scan pass
type Scanner interface {
	Scan(ctx context.Context) (*scanner.Report, error)
	Config() scanner.Config
}

// PositionLister reports the open positions of the ledger
type PositionLister interface {
	ListPositions(ctx context.Context) ([]portfolio.Position, error)
}

// App drives the scanner on an interval and records the outcome of every
// pass, whether triggered by the ticker or on demand.
type App struct {
	scanner Scanner
	logger  *zap.Logger
	metrics *metrics.Registry
	ledger  PositionLister

	interval time.Duration

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	passes   int
	last     *scanner.Report
	lastErr  error
	lastPass time.Time
}

// New creates a new App instance
func New(sc Scanner, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		scanner:  sc,
		logger:   logger,
		interval: 15 * time.Minute,
	}
}

// SetInterval sets the time between scheduled passes
func (a *App) SetInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interval = d
}

// SetMetrics enables the open positions gauge
func (a *App) SetMetrics(m *metrics.Registry) { a.metrics = m }

// SetLedger sets the ledger whose open positions are reported after each pass
func (a *App) SetLedger(l PositionLister) { a.ledger = l }

// Start runs a pass immediately and then every interval until ctx is done
// or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	if a.interval <= 0 {
		a.mu.Unlock()
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("scan interval must be positive, got %s", a.interval))
	}
	a.running = true
	interval := a.interval

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	cfg := a.scanner.Config()
	a.logger.Info("scanner loop starting",
		zap.Strings("symbols", cfg.Symbols),
		zap.String("timeframe", cfg.Timeframe),
		zap.Duration("interval", interval),
	)

	// Initial run
	a.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("scanner loop stopped")
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// Stop stops the scan loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// RunOnce performs a single scan pass and records its report
func (a *App) RunOnce(ctx context.Context) (*scanner.Report, error) {
	report, err := a.scanner.Scan(ctx)
	if err != nil {
		a.logger.Error("scan pass failed", zap.Error(err))
	}

	a.mu.Lock()
	a.passes++
	a.last = report
	a.lastErr = err
	a.lastPass = time.Now()
	a.mu.Unlock()

	a.refreshPositions(ctx)
	return report, err
}

func (a *App) refreshPositions(ctx context.Context) {
	if a.ledger == nil || a.metrics == nil {
		return
	}
	positions, err := a.ledger.ListPositions(ctx)
	if err != nil {
		a.logger.Warn("failed to count open positions", zap.Error(err))
		return
	}
	a.metrics.SetPositionsOpen(len(positions))
}

// LastReport returns the report of the most recent pass, nil before the
// first one.
func (a *App) LastReport() *scanner.Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cfg := a.scanner.Config()
	stats := map[string]any{
		"running":   a.running,
		"interval":  a.interval.String(),
		"symbols":   len(cfg.Symbols),
		"timeframe": cfg.Timeframe,
		"passes":    a.passes,
	}
	if !a.lastPass.IsZero() {
		stats["last_pass"] = a.lastPass.UTC()
	}
	if a.lastErr != nil {
		stats["last_error"] = a.lastErr.Error()
	}
	if a.last != nil {
		stats["last_status"] = a.last.Status()
	}
	return stats
}
