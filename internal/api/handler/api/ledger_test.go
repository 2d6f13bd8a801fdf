package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/portfolio"
)

func newLedgerHandler(t *testing.T) *LedgerHandler {
	t.Helper()
	db, err := portfolio.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	return NewLedgerHandler(portfolio.NewService(db, nil))
}

func call(fn http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	resp := struct {
		Data any `json:"data"`
	}{Data: v}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
}

func TestLedgerHandler_Capital(t *testing.T) {
	h := newLedgerHandler(t)

	if w := call(h.Deposit, "POST", `{"amount": 1000, "remark": "salary"}`); w.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d", w.Code)
	}
	if w := call(h.Withdraw, "POST", `{"amount": 250}`); w.Code != http.StatusCreated {
		t.Fatalf("withdraw: expected 201, got %d", w.Code)
	}
	if w := call(h.Withdraw, "POST", `{"amount": -5}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative withdraw: expected 400, got %d", w.Code)
	}
	if w := call(h.SetInitialCapital, "PUT", `{"amount": 500}`); w.Code != http.StatusOK {
		t.Fatalf("initial capital: expected 200, got %d", w.Code)
	}

	w := call(h.ListCapital, "GET", "")
	var data struct {
		Records        []portfolio.CapitalRecord `json:"records"`
		CurrentCapital float64                   `json:"currentCapital"`
		InitialCapital float64                   `json:"initialCapital"`
	}
	decodeData(t, w, &data)

	if len(data.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(data.Records))
	}
	if data.CurrentCapital != 750 {
		t.Errorf("expected current capital 750, got %v", data.CurrentCapital)
	}
	if data.InitialCapital != 500 {
		t.Errorf("expected initial capital 500, got %v", data.InitialCapital)
	}
}

func TestLedgerHandler_DecodeError(t *testing.T) {
	h := newLedgerHandler(t)

	w := call(h.Deposit, "POST", "{")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %s", resp.Error.Code)
	}
}

func TestLedgerHandler_PositionNotFound(t *testing.T) {
	h := newLedgerHandler(t)

	w := httptest.NewRecorder()
	h.GetPosition(w, httptest.NewRequest("GET", "/", nil), "42")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ClosePosition(w, httptest.NewRequest("POST", "/", nil), "4x")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestLedgerHandler_PriceRecords(t *testing.T) {
	h := newLedgerHandler(t)

	w := call(h.OpenPosition, "POST", `{"stockName":"Moutai","buyPrice":10,"shares":100,"stopLossPrice":9,"currentPrice":10,"buyDate":"2024-03-01"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d %s", w.Code, w.Body.String())
	}
	var pos portfolio.Position
	decodeData(t, w, &pos)
	id := jsonID(pos.ID)

	w = httptest.NewRecorder()
	h.AddPrice(w, httptest.NewRequest("POST", "/", strings.NewReader(`{"price": 11, "date": "2099-01-01"}`)), id)
	if w.Code != http.StatusCreated {
		t.Fatalf("add price: expected 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.DeletePrice(w, httptest.NewRequest("DELETE", "/", nil), id, "2099-01-01")
	if w.Code != http.StatusOK {
		t.Fatalf("delete price: expected 200, got %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &pos)
	if pos.CurrentPrice != 10 {
		t.Errorf("expected current price to fall back to 10, got %v", pos.CurrentPrice)
	}

	w = httptest.NewRecorder()
	h.DeletePrice(w, httptest.NewRequest("DELETE", "/", nil), id, pos.PriceHistory[0].Date)
	if w.Code != http.StatusBadRequest {
		t.Errorf("deleting last record: expected 400, got %d", w.Code)
	}
}

func TestLedgerHandler_Reviews(t *testing.T) {
	h := newLedgerHandler(t)

	w := call(h.CreateReview, "POST", `{"date":"2024-03-07","emotionState":"good","totalProfit":120,"tags":["calm"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", w.Code, w.Body.String())
	}
	var review portfolio.DailyReview
	decodeData(t, w, &review)

	if w := call(h.CreateReview, "POST", `{"date":"2024-03-07","emotionState":"good"}`); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate date: expected 400, got %d", w.Code)
	}
	if w := call(h.CreateReview, "POST", `{"date":"2024-03-08","emotionState":"ecstatic"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown emotion: expected 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ListReviews(w, httptest.NewRequest("GET", "/api/reviews?date=2024-03-07", nil))
	var byDate portfolio.DailyReview
	decodeData(t, w, &byDate)
	if byDate.ID != review.ID {
		t.Errorf("expected review %s by date, got %s", review.ID, byDate.ID)
	}

	w = httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest("GET", "/", nil), "reviews")
	var stats portfolio.ReviewStats
	decodeData(t, w, &stats)
	if stats.TotalReviews != 1 || stats.ProfitableDays != 1 {
		t.Errorf("unexpected review stats %+v", stats)
	}

	w = httptest.NewRecorder()
	h.DeleteReview(w, httptest.NewRequest("DELETE", "/", nil), review.ID)
	if w.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.GetReview(w, httptest.NewRequest("GET", "/", nil), review.ID)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted review: expected 404, got %d", w.Code)
	}
}

func TestLedgerHandler_Reset(t *testing.T) {
	h := newLedgerHandler(t)

	call(h.Deposit, "POST", `{"amount": 1000}`)

	if w := call(h.Reset, "DELETE", ""); w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}

	w := call(h.ListCapital, "GET", "")
	var data struct {
		Records []portfolio.CapitalRecord `json:"records"`
	}
	decodeData(t, w, &data)
	if len(data.Records) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(data.Records))
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
