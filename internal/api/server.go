package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlerapi "github.com/newthinker/stocktrack/internal/api/handler/api"
	"github.com/newthinker/stocktrack/internal/api/middleware"
	"github.com/newthinker/stocktrack/internal/metrics"
	"github.com/newthinker/stocktrack/internal/portfolio"
	"github.com/newthinker/stocktrack/internal/storage/signal"
)

// Server represents the HTTP server for stocktrack
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	auth       func(http.Handler) http.Handler
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies are the components the routes are served from. Optional
// ones leave their routes unregistered when nil.
type Dependencies struct {
	Runner  handlerapi.ScanRunner
	Signals signal.Store
	Reports handlerapi.ReportArchive // optional
	Ledger  *portfolio.Service       // optional
	Quote   http.Handler             // optional
	Metrics *metrics.Registry        // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Runner == nil || deps.Signals == nil {
		return nil, fmt.Errorf("scan runner and signal store are required")
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
		auth:   middleware.APIKeyAuth(cfg.APIKey),
	}

	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// handle registers an authenticated route
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.auth(h))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Quote != nil {
		s.mux.Handle("GET /api/quote", deps.Quote)
	}

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	scan := handlerapi.NewScanHandler(deps.Runner)
	s.handle("POST /api/scan", scan.Trigger)
	s.handle("GET /api/scan", scan.Trigger)
	s.handle("GET /api/scan/last", scan.Last)
	s.handle("GET /api/status", scan.Status)

	signals := handlerapi.NewSignalsHandler(deps.Signals)
	s.handle("GET /api/signals", signals.List)
	s.handle("GET /api/signals/{id}", func(w http.ResponseWriter, r *http.Request) {
		signals.GetByID(w, r, r.PathValue("id"))
	})

	if deps.Reports != nil {
		reports := handlerapi.NewReportsHandler(deps.Reports)
		s.handle("GET /api/reports", reports.List)
		s.handle("GET /api/reports/{path...}", func(w http.ResponseWriter, r *http.Request) {
			reports.Get(w, r, "reports/"+r.PathValue("path"))
		})
	}

	if deps.Ledger != nil {
		s.setupLedgerRoutes(handlerapi.NewLedgerHandler(deps.Ledger))
	}
}

func (s *Server) setupLedgerRoutes(h *handlerapi.LedgerHandler) {
	withID := func(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, r.PathValue("id"))
		}
	}

	s.handle("GET /api/positions", h.ListPositions)
	s.handle("POST /api/positions", h.OpenPosition)
	s.handle("GET /api/positions/{id}", withID(h.GetPosition))
	s.handle("PUT /api/positions/{id}", withID(h.UpdatePosition))
	s.handle("DELETE /api/positions/{id}", withID(h.DeletePosition))
	s.handle("POST /api/positions/{id}/prices", withID(h.AddPrice))
	s.handle("DELETE /api/positions/{id}/prices/{date}", func(w http.ResponseWriter, r *http.Request) {
		h.DeletePrice(w, r, r.PathValue("id"), r.PathValue("date"))
	})
	s.handle("POST /api/positions/{id}/close", withID(h.ClosePosition))

	s.handle("GET /api/closed", h.ListClosed)
	s.handle("GET /api/closed/{id}/prices", withID(h.ClosedPrices))
	s.handle("DELETE /api/closed/{id}", withID(h.DeleteClosed))

	s.handle("GET /api/capital", h.ListCapital)
	s.handle("POST /api/capital/deposit", h.Deposit)
	s.handle("POST /api/capital/withdraw", h.Withdraw)
	s.handle("PUT /api/capital/initial", h.SetInitialCapital)
	s.handle("DELETE /api/capital/{id}", withID(h.DeleteCapital))

	s.handle("GET /api/reviews", h.ListReviews)
	s.handle("POST /api/reviews", h.CreateReview)
	s.handle("GET /api/reviews/{id}", withID(h.GetReview))
	s.handle("PUT /api/reviews/{id}", withID(h.UpdateReview))
	s.handle("DELETE /api/reviews/{id}", withID(h.DeleteReview))

	s.handle("GET /api/stats/{kind}", func(w http.ResponseWriter, r *http.Request) {
		h.Stats(w, r, r.PathValue("kind"))
	})

	s.handle("GET /api/export", h.Export)
	s.handle("POST /api/import", h.Import)
	s.handle("DELETE /api/ledger", h.Reset)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
