package api

import (
	"context"
	"net/http"

	"github.com/newthinker/stocktrack/internal/api/response"
	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/scanner"
)

// ScanRunner runs scan passes on demand
type ScanRunner interface {
	RunOnce(ctx context.Context) (*scanner.Report, error)
	LastReport() *scanner.Report
	GetStats() map[string]any
}

// ScanHandler triggers scan passes over HTTP.
type ScanHandler struct {
	runner ScanRunner
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(runner ScanRunner) *ScanHandler {
	return &ScanHandler{runner: runner}
}

// Trigger runs one pass and answers "ok", or 500 with the error text. With
// ?report=1 the pass report is returned as JSON instead.
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.RunOnce(r.Context())
	if err != nil {
		response.Text(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("report") != "" {
		response.JSON(w, http.StatusOK, report)
		return
	}
	response.Text(w, http.StatusOK, "ok")
}

// Last returns the report of the most recent pass.
func (h *ScanHandler) Last(w http.ResponseWriter, r *http.Request) {
	report := h.runner.LastReport()
	if report == nil {
		response.Error(w, http.StatusNotFound, core.ErrNotFound)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// Status returns the runner statistics.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.runner.GetStats())
}
