package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/newthinker/stocktrack/internal/collector"
	"github.com/newthinker/stocktrack/internal/collector/binance"
	"github.com/newthinker/stocktrack/internal/config"
	"github.com/newthinker/stocktrack/internal/dedup"
	"github.com/newthinker/stocktrack/internal/logger"
	"github.com/newthinker/stocktrack/internal/metrics"
	"github.com/newthinker/stocktrack/internal/notifier"
	"github.com/newthinker/stocktrack/internal/notifier/email"
	"github.com/newthinker/stocktrack/internal/notifier/feishu"
	"github.com/newthinker/stocktrack/internal/notifier/telegram"
	"github.com/newthinker/stocktrack/internal/notifier/webhook"
	"github.com/newthinker/stocktrack/internal/portfolio"
	"github.com/newthinker/stocktrack/internal/scanner"
	"github.com/newthinker/stocktrack/internal/storage/archive"
	"github.com/newthinker/stocktrack/internal/storage/signal"
	"github.com/newthinker/stocktrack/internal/strategy"
	"github.com/newthinker/stocktrack/internal/strategy/ma_crossover"
	"github.com/newthinker/stocktrack/internal/strategy/rvc"
)

// components is everything built from the config. closers are released in
// reverse order by close.
type components struct {
	cfg     *config.Config
	log     *zap.Logger
	scanner *scanner.Scanner
	history *signal.MemoryStore
	reports *archive.Reports
	ledger  *portfolio.Service
	metrics *metrics.Registry

	closers []io.Closer
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.log.Warn("close failed", zap.Error(err))
		}
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Development || debug, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// build assembles the scanner and its collaborators. The ledger is only
// opened when withLedger is set, since a scan pass never touches it.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger, withLedger bool) (*components, error) {
	c := &components{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			c.close()
		}
	}()

	strat, err := buildStrategy(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildDedup(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	notifiers, err := buildNotifiers(cfg, log)
	if err != nil {
		return nil, err
	}

	source := binance.New(collector.Config{
		BaseURL:   cfg.Binance.BaseURL,
		APIKey:    cfg.Binance.APIKey,
		SecretKey: cfg.Binance.SecretKey,
		Timeout:   cfg.Scanner.RequestTimeout,
	})

	c.scanner, err = scanner.New(scanner.Config{
		Symbols:        cfg.Scanner.Symbols,
		Timeframe:      cfg.Scanner.Timeframe,
		Lookback:       cfg.Scanner.Lookback,
		Margin:         cfg.Scanner.Margin,
		RequestTimeout: cfg.Scanner.RequestTimeout,
	}, strat, source, store, notifiers, log)
	if err != nil {
		return nil, err
	}

	c.history = signal.NewMemoryStore(cfg.Storage.History.MaxSize)
	c.scanner.SetHistory(c.history)

	if c.reports, err = buildArchive(cfg); err != nil {
		return nil, err
	}
	if c.reports != nil {
		c.scanner.SetArchive(c.reports)
	}

	if cfg.Metrics.Enabled {
		c.metrics = metrics.NewRegistry()
		c.scanner.SetMetrics(c.metrics)
	}

	if path := cfg.Storage.Ledger.Path; withLedger && path != "" {
		db, err := portfolio.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, sqlDB)
		}
		c.ledger = portfolio.NewService(db, log)
	}

	log.Info("scanner configured",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Scanner.Symbols),
		zap.String("timeframe", cfg.Scanner.Timeframe),
		zap.String("dedup", cfg.Dedup.Type),
		zap.Strings("notifiers", notifiers.Names()),
	)

	ok = true
	return c, nil
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	reg := strategy.NewRegistry()
	reg.Register(rvc.Default())
	reg.Register(ma_crossover.New(10, 30))

	strat, err := reg.Lookup(cfg.Scanner.Strategy)
	if err != nil {
		return nil, err
	}
	if err := strat.Init(strategy.Config{Enabled: true, Params: cfg.StrategyParams()}); err != nil {
		return nil, fmt.Errorf("initializing strategy %s: %w", strat.Name(), err)
	}
	return strat, nil
}

func buildDedup(ctx context.Context, cfg *config.Config, c *components) (dedup.Store, error) {
	switch cfg.Dedup.Type {
	case "redis":
		r := cfg.Dedup.Redis
		store, err := dedup.NewRedisStore(ctx, dedup.RedisConfig{
			URL:      r.URL,
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		return store, nil
	case "sqlite":
		store, err := dedup.OpenSQLite(cfg.Dedup.SQLite.Path)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		return store, nil
	default:
		c.log.Warn("using in-memory dedup store, state is lost on restart")
		return dedup.NewMemoryStore(), nil
	}
}

func buildNotifiers(cfg *config.Config, log *zap.Logger) (*notifier.Registry, error) {
	reg := notifier.NewRegistry(log)
	for name, n := range cfg.Notifiers {
		if !n.Enabled {
			continue
		}
		var err error
		switch name {
		case "feishu":
			err = reg.Register(feishu.New(n.URL))
		case "webhook":
			err = reg.Register(webhook.New(n.URL, n.Headers))
		case "telegram":
			err = reg.Register(telegram.New(n.BotToken, n.ChatID))
		case "email":
			err = reg.Register(email.New(n.Host, n.Port, n.Username, n.Password, n.From, n.To))
		}
		if err != nil {
			return nil, err
		}
	}
	if reg.Len() == 0 {
		return nil, errors.New("no notifier enabled, set FEISHU_WEBHOOK or enable one under notifiers")
	}
	return reg, nil
}

func buildArchive(cfg *config.Config) (*archive.Reports, error) {
	a := cfg.Storage.Archive
	switch a.Type {
	case "localfs":
		fs, err := archive.NewLocalFS(a.Path)
		if err != nil {
			return nil, err
		}
		return archive.NewReports(fs), nil
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return archive.NewReports(s3), nil
	}
	return nil, nil
}
