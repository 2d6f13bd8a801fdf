package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/core"
)

// ReportArchive lists and loads archived scan reports
type ReportArchive interface {
	ListDay(ctx context.Context, day time.Time) ([]string, error)
	Load(ctx context.Context, path string, v any) error
}

// ReportsHandler serves archived scan reports.
type ReportsHandler struct {
	archive ReportArchive
	now     func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(archive ReportArchive) *ReportsHandler {
	return &ReportsHandler{archive: archive, now: time.Now}
}

// List returns the report paths of ?date=YYYY-MM-DD, today (UTC) by default.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	day := h.now().UTC()
	if date := r.URL.Query().Get("date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrInvalidInput, fmt.Errorf("date %q: %w", date, err)))
			return
		}
		day = parsed
	}

	paths, err := h.archive.ListDay(r.Context(), day)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"date":    day.Format("2006-01-02"),
		"reports": paths,
		"count":   len(paths),
	})
}

// Get returns one archived report by path.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request, path string) {
	var report json.RawMessage
	if err := h.archive.Load(r.Context(), path, &report); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}
