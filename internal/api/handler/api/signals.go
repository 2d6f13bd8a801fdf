package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/storage/signal"
)

const defaultListLimit = 50

// SignalsHandler serves the history of sent alerts.
type SignalsHandler struct {
	store signal.Store
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(store signal.Store) *SignalsHandler {
	return &SignalsHandler{store: store}
}

func parseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// List returns alerts matching query parameters, newest first.
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := signal.ListFilter{
		Symbol:    strings.ToUpper(q.Get("symbol")),
		Strategy:  q.Get("strategy"),
		Timeframe: q.Get("timeframe"),
		Limit:     defaultListLimit,
	}

	if dir := q.Get("direction"); dir != "" {
		filter.Direction = core.Direction(strings.ToUpper(dir))
	}

	if from := q.Get("from"); from != "" {
		if t, ok := parseTime(from); ok {
			filter.From = t
		}
	}

	if to := q.Get("to"); to != "" {
		if t, ok := parseTime(to); ok {
			filter.To = t
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}

	alerts, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	count, _ := h.store.Count(r.Context(), filter)

	response.JSON(w, http.StatusOK, map[string]any{
		"signals": alerts,
		"total":   count,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetByID returns a single alert by ID.
func (h *SignalsHandler) GetByID(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, alert)
}
