package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/api"
	"github.com/newthinker/stocktrack/internal/app"
	"github.com/newthinker/stocktrack/internal/quote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the scan loop",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := build(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer c.close()

	runner := app.New(c.scanner, log)
	if c.metrics != nil {
		runner.SetMetrics(c.metrics)
	}
	if c.ledger != nil {
		runner.SetLedger(c.ledger)
	}

	deps := api.Dependencies{
		Runner:  runner,
		Signals: c.history,
		Ledger:  c.ledger,
		Quote:   quote.NewProxy(cfg.Quote.Upstream, log),
		Metrics: c.metrics,
	}
	if c.reports != nil {
		deps.Reports = c.reports
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, deps, log)
	if err != nil {
		return err
	}

	if cfg.Scanner.Interval > 0 {
		runner.SetInterval(cfg.Scanner.Interval)
		go func() {
			if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scan loop error", zap.Error(err))
			}
		}()
		defer runner.Stop()
	} else {
		log.Info("scan loop disabled, passes run only on request")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down stocktrack")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}
