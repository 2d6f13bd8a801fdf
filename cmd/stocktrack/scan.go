package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/scanner"
)

var printReport bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan pass and exit",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&printReport, "report", false, "print the pass report as JSON")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer c.close()

	report, err := c.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	log.Info("scan finished",
		zap.Int("notified", report.Count(scanner.OutcomeNotified)),
		zap.Int("failed", report.Count(scanner.OutcomeFailed)),
	)

	if printReport {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return nil
}
