package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/portfolio"
)

// maxImportBytes bounds snapshot uploads
const maxImportBytes = 32 << 20

// LedgerHandler exposes the position ledger.
type LedgerHandler struct {
	svc *portfolio.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc *portfolio.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, fmt.Errorf("decoding body: %w", err)))
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, fmt.Errorf("id %q is not a number", raw)))
		return 0, false
	}
	return id, true
}

// ListPositions handles GET /api/positions
func (h *LedgerHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.ListPositions(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// OpenPosition handles POST /api/positions
func (h *LedgerHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	var req portfolio.OpenPositionInput
	if !decode(w, r, &req) {
		return
	}
	pos, err := h.svc.OpenPosition(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, pos)
}

// GetPosition handles GET /api/positions/{id}
func (h *LedgerHandler) GetPosition(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	pos, err := h.svc.GetPosition(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pos)
}

// UpdatePosition handles PUT /api/positions/{id}
func (h *LedgerHandler) UpdatePosition(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	var req portfolio.UpdatePositionInput
	if !decode(w, r, &req) {
		return
	}
	pos, err := h.svc.UpdatePosition(r.Context(), id, req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pos)
}

// DeletePosition handles DELETE /api/positions/{id}
func (h *LedgerHandler) DeletePosition(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	if err := h.svc.DeletePosition(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// PriceRequest is the request body for adding a price record.
type PriceRequest struct {
	Price  float64 `json:"price"`
	Date   string  `json:"date,omitempty"`
	Remark string  `json:"remark,omitempty"`
}

// AddPrice handles POST /api/positions/{id}/prices
func (h *LedgerHandler) AddPrice(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	var req PriceRequest
	if !decode(w, r, &req) {
		return
	}
	pos, err := h.svc.AddPriceRecord(r.Context(), id, req.Price, req.Date, req.Remark)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, pos)
}

// DeletePrice handles DELETE /api/positions/{id}/prices/{date}
func (h *LedgerHandler) DeletePrice(w http.ResponseWriter, r *http.Request, rawID, date string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	pos, err := h.svc.DeletePriceRecord(r.Context(), id, date)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pos)
}

// ClosePosition handles POST /api/positions/{id}/close
func (h *LedgerHandler) ClosePosition(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	closed, err := h.svc.ClosePosition(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, closed)
}

// ListClosed handles GET /api/closed
func (h *LedgerHandler) ListClosed(w http.ResponseWriter, r *http.Request) {
	closed, err := h.svc.ListClosed(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"positions": closed,
		"count":     len(closed),
	})
}

// ClosedPrices handles GET /api/closed/{id}/prices
func (h *LedgerHandler) ClosedPrices(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	history, err := h.svc.ClosedPriceHistory(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"id": id, "priceHistory": history})
}

// DeleteClosed handles DELETE /api/closed/{id}
func (h *LedgerHandler) DeleteClosed(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	if err := h.svc.DeleteClosedPosition(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// AmountRequest is the request body for capital movements.
type AmountRequest struct {
	Amount float64 `json:"amount"`
	Remark string  `json:"remark,omitempty"`
}

// ListCapital handles GET /api/capital
func (h *LedgerHandler) ListCapital(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.svc.ListCapital(ctx)
	if err != nil {
		response.Fail(w, err)
		return
	}
	current, err := h.svc.CurrentCapital(ctx)
	if err != nil {
		response.Fail(w, err)
		return
	}
	initial, err := h.svc.InitialCapital(ctx)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"records":        records,
		"currentCapital": current,
		"initialCapital": initial,
	})
}

// Deposit handles POST /api/capital/deposit
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.svc.Deposit(r.Context(), req.Amount, req.Remark)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rec)
}

// Withdraw handles POST /api/capital/withdraw
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.svc.Withdraw(r.Context(), req.Amount, req.Remark)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rec)
}

// DeleteCapital handles DELETE /api/capital/{id}
func (h *LedgerHandler) DeleteCapital(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteCapitalRecord(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// SetInitialCapital handles PUT /api/capital/initial
func (h *LedgerHandler) SetInitialCapital(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SetInitialCapital(r.Context(), req.Amount); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"initialCapital": req.Amount})
}

// ListReviews handles GET /api/reviews. ?date= returns the review of that
// day; otherwise ?limit= bounds the newest-first list.
func (h *LedgerHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		review, err := h.svc.ReviewByDate(r.Context(), date)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.JSON(w, http.StatusOK, review)
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	reviews, err := h.svc.ListReviews(r.Context(), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

// CreateReview handles POST /api/reviews
func (h *LedgerHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req portfolio.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	review, err := h.svc.CreateReview(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, review)
}

// GetReview handles GET /api/reviews/{id}
func (h *LedgerHandler) GetReview(w http.ResponseWriter, r *http.Request, id string) {
	review, err := h.svc.GetReview(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, review)
}

// UpdateReview handles PUT /api/reviews/{id}
func (h *LedgerHandler) UpdateReview(w http.ResponseWriter, r *http.Request, id string) {
	var req portfolio.ReviewInput
	if !decode(w, r, &req) {
		return
	}
	review, err := h.svc.UpdateReview(r.Context(), id, req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/reviews/{id}
func (h *LedgerHandler) DeleteReview(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteReview(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// Stats handles GET /api/stats/{kind} for invest, closed, reviews and
// daily (?date=YYYY-MM-DD).
func (h *LedgerHandler) Stats(w http.ResponseWriter, r *http.Request, kind string) {
	ctx := r.Context()
	var (
		stats any
		err   error
	)
	switch kind {
	case "invest":
		stats, err = h.svc.InvestStats(ctx)
	case "closed":
		stats, err = h.svc.ClosedStats(ctx)
	case "reviews":
		stats, err = h.svc.ReviewStats(ctx)
	case "daily":
		date := r.URL.Query().Get("date")
		var profit float64
		profit, err = h.svc.DailyProfit(ctx, date)
		stats = map[string]any{"date": date, "profit": profit}
	default:
		err = fmt.Errorf("stats %q: %w", kind, core.ErrNotFound)
	}
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

// Export handles GET /api/export. The snapshot is sent bare, not in the
// response envelope, so the file can be imported as is.
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Export(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-export.json"`)
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(snap)
}

// Import handles POST /api/import
func (h *LedgerHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	var snap portfolio.Snapshot
	if !decode(w, r, &snap) {
		return
	}
	result, err := h.svc.Import(r.Context(), &snap)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Reset handles DELETE /api/ledger
func (h *LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"reset": true})
}
