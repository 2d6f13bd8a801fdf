package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/storage/signal"
)

func seedSignals(t *testing.T) *signal.MemoryStore {
	t.Helper()
	store := signal.NewMemoryStore(100)
	base := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	store.Save(context.Background(), core.Alert{
		Strategy:  "rvc010",
		Symbol:    "ETHUSDT",
		Timeframe: "15m",
		Direction: core.DirectionUp,
		SentAt:    base,
	})
	store.Save(context.Background(), core.Alert{
		Strategy:  "rvc010",
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		Direction: core.DirectionDown,
		SentAt:    base.Add(time.Hour),
	})
	store.Save(context.Background(), core.Alert{
		Strategy:  "ma_crossover",
		Symbol:    "ETHUSDT",
		Timeframe: "1h",
		Direction: core.DirectionDown,
		SentAt:    base.Add(48 * time.Hour),
	})
	return store
}

func listSignals(t *testing.T, h *SignalsHandler, query string) map[string]any {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/signals"+query, nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Data.(map[string]any)
}

func TestSignalsHandler_List(t *testing.T) {
	handler := NewSignalsHandler(seedSignals(t))

	data := listSignals(t, handler, "")
	signals := data["signals"].([]any)
	if len(signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(signals))
	}
	if data["limit"].(float64) != defaultListLimit {
		t.Errorf("expected default limit, got %v", data["limit"])
	}

	newest := signals[0].(map[string]any)
	if newest["strategy"] != "ma_crossover" {
		t.Errorf("expected newest first, got %v", newest["strategy"])
	}
}

func TestSignalsHandler_ListWithFilters(t *testing.T) {
	handler := NewSignalsHandler(seedSignals(t))

	tests := []struct {
		query string
		want  int
	}{
		{"?symbol=ethusdt", 2},
		{"?direction=down", 2},
		{"?strategy=rvc010&timeframe=15m", 2},
		{"?symbol=ETHUSDT&direction=UP", 1},
		{"?from=2024-03-08", 1},
		{"?to=2024-03-07T00:30:00Z", 1},
		{"?limit=1", 1},
		{"?offset=2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			data := listSignals(t, handler, tt.query)
			if got := len(data["signals"].([]any)); got != tt.want {
				t.Errorf("expected %d signals, got %d", tt.want, got)
			}
		})
	}
}

func TestSignalsHandler_ListTotalIgnoresPaging(t *testing.T) {
	handler := NewSignalsHandler(seedSignals(t))

	data := listSignals(t, handler, "?limit=1&offset=1")
	if data["total"].(float64) != 3 {
		t.Errorf("expected total 3, got %v", data["total"])
	}
}

func TestSignalsHandler_GetByID(t *testing.T) {
	store := seedSignals(t)
	alerts, _ := store.List(context.Background(), signal.ListFilter{})
	id := alerts[0].ID

	handler := NewSignalsHandler(store)

	req := httptest.NewRequest("GET", "/api/signals/"+id, nil)
	w := httptest.NewRecorder()

	handler.GetByID(w, req, id)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSignalsHandler_GetByID_NotFound(t *testing.T) {
	handler := NewSignalsHandler(signal.NewMemoryStore(100))

	req := httptest.NewRequest("GET", "/api/signals/nonexistent", nil)
	w := httptest.NewRecorder()

	handler.GetByID(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
