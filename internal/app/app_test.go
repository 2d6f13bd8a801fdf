package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/metrics"
	"github.com/newthinker/stocktrack/internal/portfolio"
	"github.com/newthinker/stocktrack/internal/scanner"
)

type mockScanner struct {
	mu     sync.Mutex
	calls  int
	err    error
	report *scanner.Report
}

func (m *mockScanner) Scan(ctx context.Context) (*scanner.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.report, m.err
}

func (m *mockScanner) Config() scanner.Config {
	cfg := scanner.DefaultConfig()
	cfg.Symbols = []string{"ETHUSDT", "BTCUSDT"}
	return cfg
}

func (m *mockScanner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLedger struct {
	positions []portfolio.Position
}

func (m *mockLedger) ListPositions(ctx context.Context) ([]portfolio.Position, error) {
	return m.positions, nil
}

func TestApp_New(t *testing.T) {
	app := New(&mockScanner{}, nil)

	if app == nil {
		t.Fatal("expected non-nil app")
	}

	stats := app.GetStats()
	if stats["running"].(bool) {
		t.Error("new app should not be running")
	}
	if stats["symbols"].(int) != 2 {
		t.Errorf("expected 2 symbols, got %v", stats["symbols"])
	}
	if app.LastReport() != nil {
		t.Error("expected no report before the first pass")
	}
}

func TestApp_RunOnce(t *testing.T) {
	report := &scanner.Report{
		Strategy: "rvc010",
		Results:  []scanner.SymbolResult{{Symbol: "ETHUSDT", Outcome: scanner.OutcomeNotified}},
	}
	sc := &mockScanner{report: report}
	app := New(sc, nil)

	got, err := app.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != report || app.LastReport() != report {
		t.Error("expected report to be returned and recorded")
	}

	stats := app.GetStats()
	if stats["passes"].(int) != 1 {
		t.Errorf("expected 1 pass, got %v", stats["passes"])
	}
	if stats["last_status"] != "ok" {
		t.Errorf("expected last_status ok, got %v", stats["last_status"])
	}
}

func TestApp_RunOnce_Error(t *testing.T) {
	sc := &mockScanner{err: context.Canceled}
	app := New(sc, nil)

	if _, err := app.RunOnce(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled error, got %v", err)
	}
	if app.GetStats()["last_error"] != context.Canceled.Error() {
		t.Errorf("expected last_error to be recorded, got %v", app.GetStats()["last_error"])
	}
}

func TestApp_RunOnce_UpdatesPositionsGauge(t *testing.T) {
	reg := metrics.NewRegistry()
	app := New(&mockScanner{report: &scanner.Report{}}, nil)
	app.SetMetrics(reg)
	app.SetLedger(&mockLedger{positions: make([]portfolio.Position, 3)})

	app.RunOnce(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() == "stocktrack_positions_open" {
			found = true
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 3 {
				t.Errorf("expected 3 open positions, got %v", v)
			}
		}
	}
	if !found {
		t.Error("expected stocktrack_positions_open metric")
	}
}

func TestApp_StartStop(t *testing.T) {
	sc := &mockScanner{report: &scanner.Report{}}
	app := New(sc, nil)
	app.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	time.Sleep(35 * time.Millisecond)
	if err := app.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}
	app.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}

	if sc.Calls() < 2 {
		t.Errorf("expected initial and ticked passes, got %d", sc.Calls())
	}
}

func TestApp_Start_RequiresInterval(t *testing.T) {
	app := New(&mockScanner{}, nil)
	app.SetInterval(0)

	if err := app.Start(context.Background()); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected config invalid, got %v", err)
	}
}
