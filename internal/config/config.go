package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/newthinker/stocktrack/internal/core"
)

type Config struct {
	Log        LogConfig                 `mapstructure:"log"`
	Server     ServerConfig              `mapstructure:"server"`
	Scanner    ScannerConfig             `mapstructure:"scanner"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Binance    BinanceConfig             `mapstructure:"binance"`
	Dedup      DedupConfig               `mapstructure:"dedup"`
	Notifiers  map[string]NotifierConfig `mapstructure:"notifiers"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Quote      QuoteConfig               `mapstructure:"quote"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ScannerConfig selects the strategy and the market the scanner watches.
// The window fields override the strategy's defaults when non-zero.
type ScannerConfig struct {
	Strategy       string        `mapstructure:"strategy"`
	Symbols        []string      `mapstructure:"symbols"`
	Timeframe      string        `mapstructure:"timeframe"`
	Lookback       int           `mapstructure:"lookback"`
	Margin         int           `mapstructure:"margin"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Interval       time.Duration `mapstructure:"interval"`

	MinBars    int `mapstructure:"min_bars"`
	HHVWindow  int `mapstructure:"hhv_window"`
	SMAWindow  int `mapstructure:"sma_window"`
	FastPeriod int `mapstructure:"fast_period"`
	SlowPeriod int `mapstructure:"slow_period"`
}

// StrategyParams merges the scanner window overrides into the params of
// the selected strategy's section.
func (c *Config) StrategyParams() map[string]any {
	params := map[string]any{}
	for k, v := range c.Strategies[c.Scanner.Strategy].Params {
		params[k] = v
	}
	overrides := map[string]int{
		"min_bars":    c.Scanner.MinBars,
		"hhv_period":  c.Scanner.HHVWindow,
		"sma_period":  c.Scanner.SMAWindow,
		"fast_period": c.Scanner.FastPeriod,
		"slow_period": c.Scanner.SlowPeriod,
	}
	for k, v := range overrides {
		if v != 0 {
			params[k] = v
		}
	}
	return params
}

type StrategyConfig struct {
	Params map[string]any `mapstructure:"params"`
}

type BinanceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type DedupConfig struct {
	Type   string            `mapstructure:"type"` // "memory", "redis" or "sqlite"
	Redis  RedisConfig       `mapstructure:"redis"`
	SQLite SQLiteDedupConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLiteDedupConfig struct {
	Path string `mapstructure:"path"`
}

type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

type StorageConfig struct {
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	History HistoryConfig `mapstructure:"history"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// LedgerConfig locates the position ledger database. An empty path
// disables the ledger endpoints.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type QuoteConfig struct {
	Upstream string `mapstructure:"upstream"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from path, which may be empty to configure
// from defaults and the environment alone. A .env file in the working
// directory is loaded first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	applyLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Scanner.Symbols = ParseSymbols(strings.Join(cfg.Scanner.Symbols, ","))

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("scanner.strategy", d.Scanner.Strategy)
	v.SetDefault("scanner.symbols", d.Scanner.Symbols)
	v.SetDefault("scanner.timeframe", d.Scanner.Timeframe)
	v.SetDefault("scanner.lookback", d.Scanner.Lookback)
	v.SetDefault("scanner.margin", d.Scanner.Margin)
	v.SetDefault("scanner.request_timeout", d.Scanner.RequestTimeout)
	v.SetDefault("scanner.interval", d.Scanner.Interval)
	v.SetDefault("binance.base_url", d.Binance.BaseURL)
	v.SetDefault("dedup.type", d.Dedup.Type)
	v.SetDefault("dedup.redis.url", "")
	v.SetDefault("dedup.redis.addr", d.Dedup.Redis.Addr)
	v.SetDefault("dedup.redis.prefix", d.Dedup.Redis.Prefix)
	v.SetDefault("dedup.sqlite.path", d.Dedup.SQLite.Path)
	v.SetDefault("storage.ledger.path", d.Storage.Ledger.Path)
	v.SetDefault("storage.history.max_size", d.Storage.History.MaxSize)
	v.SetDefault("storage.archive.type", d.Storage.Archive.Type)
	v.SetDefault("storage.archive.path", d.Storage.Archive.Path)
	v.SetDefault("quote.upstream", d.Quote.Upstream)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// applyLegacyEnv maps the flat variables of the original deployment onto
// the structured keys. Structured values win when both are present.
func applyLegacyEnv(v *viper.Viper) {
	if url := os.Getenv("FEISHU_WEBHOOK"); url != "" && v.GetString("notifiers.feishu.url") == "" {
		v.Set("notifiers.feishu.url", url)
		v.Set("notifiers.feishu.enabled", true)
	}
	if symbols := os.Getenv("SYMBOLS"); symbols != "" && !v.InConfig("scanner.symbols") {
		v.Set("scanner.symbols", ParseSymbols(symbols))
	}
	if tf := os.Getenv("TIMEFRAME"); tf != "" && !v.InConfig("scanner.timeframe") {
		v.Set("scanner.timeframe", tf)
	}
	if url := os.Getenv("REDIS_URL"); url != "" && v.GetString("dedup.redis.url") == "" {
		v.Set("dedup.redis.url", url)
		if !v.InConfig("dedup.type") {
			v.Set("dedup.type", "redis")
		}
	}
}

// ParseSymbols splits a comma-separated symbol list, upper-casing entries
// and dropping blanks and duplicates.
func ParseSymbols(s string) []string {
	symbols := lo.Map(strings.Split(s, ","), func(sym string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(sym))
	})
	return lo.Uniq(lo.Compact(symbols))
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Scanner: ScannerConfig{
			Strategy:       "rvc010",
			Symbols:        []string{"ETHUSDT"},
			Timeframe:      "15m",
			Lookback:       300,
			Margin:         5,
			RequestTimeout: 10 * time.Second,
		},
		Dedup: DedupConfig{
			Type:   "memory",
			Redis:  RedisConfig{Addr: "localhost:6379"},
			SQLite: SQLiteDedupConfig{Path: "data/dedup.db"},
		},
		Storage: StorageConfig{
			Ledger:  LedgerConfig{Path: "data/ledger.db"},
			History: HistoryConfig{MaxSize: 1000},
		},
		Quote: QuoteConfig{
			Upstream: "https://hq.sinajs.cn/list=",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}

func missing(format string, args ...any) error {
	return core.WrapError(core.ErrConfigMissing, fmt.Errorf(format, args...))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", c.Server.Port)
	}

	s := c.Scanner
	switch {
	case s.Strategy == "":
		return missing("scanner.strategy is required")
	case len(s.Symbols) == 0:
		return missing("scanner.symbols must list at least one symbol")
	case s.Timeframe == "":
		return missing("scanner.timeframe is required")
	case s.Lookback <= 0:
		return invalid("scanner.lookback must be positive, got %d", s.Lookback)
	case s.Margin < 0:
		return invalid("scanner.margin cannot be negative, got %d", s.Margin)
	case s.RequestTimeout <= 0:
		return invalid("scanner.request_timeout must be positive, got %s", s.RequestTimeout)
	case s.Interval < 0:
		return invalid("scanner.interval cannot be negative, got %s", s.Interval)
	}

	switch c.Dedup.Type {
	case "memory":
	case "redis":
		if c.Dedup.Redis.URL == "" && c.Dedup.Redis.Addr == "" {
			return missing("dedup.redis.addr or dedup.redis.url required for redis dedup")
		}
	case "sqlite":
		if c.Dedup.SQLite.Path == "" {
			return missing("dedup.sqlite.path required for sqlite dedup")
		}
	default:
		return invalid("unknown dedup type %q", c.Dedup.Type)
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		if err := validateNotifier(name, n); err != nil {
			return err
		}
	}

	switch c.Storage.Archive.Type {
	case "":
	case "localfs":
		if c.Storage.Archive.Path == "" {
			return missing("storage.archive.path required for localfs archive")
		}
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return missing("storage.archive.s3.bucket required for s3 archive")
		}
	default:
		return invalid("unknown archive type %q", c.Storage.Archive.Type)
	}

	if c.Storage.History.MaxSize < 0 {
		return invalid("storage.history.max_size cannot be negative, got %d", c.Storage.History.MaxSize)
	}

	return nil
}

func validateNotifier(name string, n NotifierConfig) error {
	switch name {
	case "feishu", "webhook":
		if n.URL == "" {
			return missing("%s url required", name)
		}
	case "telegram":
		if n.BotToken == "" || n.ChatID == "" {
			return missing("telegram bot_token and chat_id required")
		}
	case "email":
		if n.Host == "" || n.From == "" || len(n.To) == 0 {
			return missing("email host, from and to required")
		}
	default:
		return invalid("unknown notifier %q", name)
	}
	return nil
}
