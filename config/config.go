package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/storage/budgetstate"
	"github.com/vadiminshakov/sentidca/internal/storage/decisions"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSmoothingWindow = 7
	DefaultTrendWindow     = 1400
	DefaultServerAddr      = ":8080"
	DefaultRefreshCron     = "@every 1h"
	DefaultCacheTTL        = time.Hour
	DefaultRPS             = 5

	SnapshotSourceCoinGecko = "coingecko"
	SnapshotSourceBinance   = "binance"
	SnapshotSourceNone      = "none"
)

// Config is the parsed application configuration.
type Config struct {
	MonthlyBudget   decimal.Decimal
	SmoothingWindow int
	TrendWindow     int
	StartDate       domain.Date
	Strategy        domain.Strategy
	MaxDaily        decimal.NullDecimal
	Crash           domain.CrashPolicy

	Sources Sources
	Storage Storage

	ServerAddr  string
	RefreshCron string
	LogLevel    string
}

// Sources configures the market data fetchers. Empty URLs use the fetcher defaults.
type Sources struct {
	HoldersURL        string
	PricesCSVURL      string
	CoinGeckoURL      string
	StrikeAPIBase     string
	StrikeAPIKey      string
	BinanceBaseURL    string
	SpotSource        string
	SnapshotSource    string
	CacheTTL          time.Duration
	RequestsPerSecond float64
}

// Storage locates the on-disk state.
type Storage struct {
	SQLitePath string
	StateDir   string
	WALDir     string
}

// ConfigTmp mirrors the yaml file. Numbers are strings so that empty means default.
type ConfigTmp struct {
	MonthlyBudgetStr   string      `yaml:"monthly_budget_usd,omitempty"`
	SmoothingWindowStr string      `yaml:"smoothing_window_days,omitempty"`
	TrendWindowStr     string      `yaml:"trend_window_days,omitempty"`
	StartDate          string      `yaml:"start_date,omitempty"`
	BandTable          string      `yaml:"band_table,omitempty"`
	TrendAdjustmentStr string      `yaml:"trend_adjustment,omitempty"`
	MaxDailyStr        string      `yaml:"max_daily_usd,omitempty"`
	Crash              CrashTmp    `yaml:"crash,omitempty"`
	Sources            SourcesTmp  `yaml:"sources,omitempty"`
	Storage            StorageTmp  `yaml:"storage,omitempty"`
	Server             ServerTmp   `yaml:"server,omitempty"`
	Schedule           ScheduleTmp `yaml:"schedule,omitempty"`
	Logging            LoggingTmp  `yaml:"logging,omitempty"`
}

type CrashTmp struct {
	ThresholdPctStr string `yaml:"threshold_pct,omitempty"`
	MultiplierStr   string `yaml:"multiplier,omitempty"`
	CapStr          string `yaml:"cap_usd,omitempty"`
}

type SourcesTmp struct {
	HoldersURL        string        `yaml:"holders_url,omitempty"`
	PricesCSVURL      string        `yaml:"prices_csv_url,omitempty"`
	CoinGeckoURL      string        `yaml:"coingecko_url,omitempty"`
	StrikeAPIBase     string        `yaml:"strike_api_base,omitempty"`
	BinanceBaseURL    string        `yaml:"binance_base_url,omitempty"`
	SpotSource        string        `yaml:"spot_source,omitempty"`
	SnapshotSource    string        `yaml:"snapshot_source,omitempty"`
	CacheTTL          time.Duration `yaml:"cache_ttl,omitempty"`
	RequestsPerSecond string        `yaml:"requests_per_second,omitempty"`
}

type StorageTmp struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
	StateDir   string `yaml:"state_dir,omitempty"`
	WALDir     string `yaml:"wal_dir,omitempty"`
}

type ServerTmp struct {
	Addr string `yaml:"addr,omitempty"`
}

type ScheduleTmp struct {
	RefreshCron string `yaml:"refresh_cron,omitempty"`
}

type LoggingTmp struct {
	Level string `yaml:"level,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		MonthlyBudget:   decimal.NewFromInt(1100),
		SmoothingWindow: DefaultSmoothingWindow,
		TrendWindow:     DefaultTrendWindow,
		Strategy:        domain.DefaultStrategy(),
		Crash:           domain.DefaultCrashPolicy(),
		Sources: Sources{
			SpotSource:        "strike",
			SnapshotSource:    SnapshotSourceCoinGecko,
			CacheTTL:          DefaultCacheTTL,
			RequestsPerSecond: DefaultRPS,
		},
		Storage: Storage{
			SQLitePath: "sentidca.db",
			StateDir:   budgetstate.DefaultDir(),
			WALDir:     decisions.DefaultDir,
		},
		ServerAddr:  DefaultServerAddr,
		RefreshCron: DefaultRefreshCron,
		LogLevel:    "info",
	}
}

// Load reads .env (if present), then the yaml file at path. An empty path
// yields the defaults. STRIKE_API_KEY is only taken from the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}

		var tmp ConfigTmp
		if err := yaml.Unmarshal(payload, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "decode yaml config")
		}

		if cfg, err = tmp.apply(cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Sources.StrikeAPIKey = os.Getenv("STRIKE_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c ConfigTmp) apply(cfg Config) (Config, error) {
	var err error

	if cfg.MonthlyBudget, err = decimalOr(c.MonthlyBudgetStr, cfg.MonthlyBudget); err != nil {
		return Config{}, fmt.Errorf("incorrect 'monthly_budget_usd' param in yaml config (correct format is 1100), error: %w", err)
	}
	if cfg.SmoothingWindow, err = intOr(c.SmoothingWindowStr, cfg.SmoothingWindow); err != nil {
		return Config{}, fmt.Errorf("incorrect 'smoothing_window_days' param in yaml config (must be an integer), error: %w", err)
	}
	if cfg.TrendWindow, err = intOr(c.TrendWindowStr, cfg.TrendWindow); err != nil {
		return Config{}, fmt.Errorf("incorrect 'trend_window_days' param in yaml config (must be an integer), error: %w", err)
	}

	if c.StartDate != "" {
		if cfg.StartDate, err = domain.ParseDate(c.StartDate); err != nil {
			return Config{}, fmt.Errorf("incorrect 'start_date' param in yaml config (correct format is 2020-01-31), error: %w", err)
		}
	}

	if c.BandTable != "" {
		table, err := domain.BandTableByName(c.BandTable)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'band_table' param in yaml config (want default or legacy), error: %w", err)
		}
		cfg.Strategy.Bands = table
	}
	if c.TrendAdjustmentStr != "" {
		if cfg.Strategy.TrendAdjustment, err = strconv.ParseBool(c.TrendAdjustmentStr); err != nil {
			return Config{}, fmt.Errorf("incorrect 'trend_adjustment' param in yaml config (must be true or false), error: %w", err)
		}
	}

	if c.MaxDailyStr != "" {
		maxDaily, err := decimal.NewFromString(c.MaxDailyStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'max_daily_usd' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.MaxDaily = decimal.NewNullDecimal(maxDaily)
	}

	if cfg.Crash.ThresholdPct, err = decimalOr(c.Crash.ThresholdPctStr, cfg.Crash.ThresholdPct); err != nil {
		return Config{}, fmt.Errorf("incorrect 'crash.threshold_pct' param in yaml config (correct format is -15), error: %w", err)
	}
	if cfg.Crash.Multiplier, err = decimalOr(c.Crash.MultiplierStr, cfg.Crash.Multiplier); err != nil {
		return Config{}, fmt.Errorf("incorrect 'crash.multiplier' param in yaml config (must be a decimal), error: %w", err)
	}
	if cfg.Crash.Cap, err = decimalOr(c.Crash.CapStr, cfg.Crash.Cap); err != nil {
		return Config{}, fmt.Errorf("incorrect 'crash.cap_usd' param in yaml config (must be a decimal), error: %w", err)
	}

	src := c.Sources
	cfg.Sources.HoldersURL = stringOr(src.HoldersURL, cfg.Sources.HoldersURL)
	cfg.Sources.PricesCSVURL = stringOr(src.PricesCSVURL, cfg.Sources.PricesCSVURL)
	cfg.Sources.CoinGeckoURL = stringOr(src.CoinGeckoURL, cfg.Sources.CoinGeckoURL)
	cfg.Sources.StrikeAPIBase = stringOr(src.StrikeAPIBase, cfg.Sources.StrikeAPIBase)
	cfg.Sources.BinanceBaseURL = stringOr(src.BinanceBaseURL, cfg.Sources.BinanceBaseURL)
	cfg.Sources.SpotSource = stringOr(src.SpotSource, cfg.Sources.SpotSource)
	cfg.Sources.SnapshotSource = stringOr(src.SnapshotSource, cfg.Sources.SnapshotSource)
	if src.CacheTTL > 0 {
		cfg.Sources.CacheTTL = src.CacheTTL
	}
	if src.RequestsPerSecond != "" {
		if cfg.Sources.RequestsPerSecond, err = strconv.ParseFloat(src.RequestsPerSecond, 64); err != nil {
			return Config{}, fmt.Errorf("incorrect 'sources.requests_per_second' param in yaml config (must be a number), error: %w", err)
		}
	}

	cfg.Storage.SQLitePath = stringOr(c.Storage.SQLitePath, cfg.Storage.SQLitePath)
	cfg.Storage.StateDir = stringOr(c.Storage.StateDir, cfg.Storage.StateDir)
	cfg.Storage.WALDir = stringOr(c.Storage.WALDir, cfg.Storage.WALDir)

	cfg.ServerAddr = stringOr(c.Server.Addr, cfg.ServerAddr)
	cfg.RefreshCron = stringOr(c.Schedule.RefreshCron, cfg.RefreshCron)
	cfg.LogLevel = stringOr(c.Logging.Level, cfg.LogLevel)

	return cfg, nil
}

// Validate checks the parsed values.
func (c Config) Validate() error {
	if !c.MonthlyBudget.IsPositive() {
		return fmt.Errorf("monthly budget must be positive, got %s", c.MonthlyBudget)
	}
	if c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing window must be at least 1 day, got %d", c.SmoothingWindow)
	}
	if c.TrendWindow < 1 {
		return fmt.Errorf("trend window must be at least 1 day, got %d", c.TrendWindow)
	}
	if c.MaxDaily.Valid && !c.MaxDaily.Decimal.IsPositive() {
		return fmt.Errorf("max daily spend must be positive, got %s", c.MaxDaily.Decimal)
	}
	if err := c.Strategy.Bands.Validate(); err != nil {
		return errors.Wrap(err, "band table")
	}
	if err := c.Crash.Validate(); err != nil {
		return err
	}

	switch c.Sources.SpotSource {
	case "strike", "binance":
	default:
		return fmt.Errorf("unsupported spot source %q", c.Sources.SpotSource)
	}
	switch c.Sources.SnapshotSource {
	case SnapshotSourceCoinGecko, SnapshotSourceBinance, SnapshotSourceNone:
	default:
		return fmt.Errorf("unsupported snapshot source %q", c.Sources.SnapshotSource)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

// Tmp converts the config back to its yaml form.
func (c Config) Tmp() ConfigTmp {
	tmp := ConfigTmp{
		MonthlyBudgetStr:   c.MonthlyBudget.String(),
		SmoothingWindowStr: strconv.Itoa(c.SmoothingWindow),
		TrendWindowStr:     strconv.Itoa(c.TrendWindow),
		BandTable:          c.Strategy.Bands.Name,
		TrendAdjustmentStr: strconv.FormatBool(c.Strategy.TrendAdjustment),
		Crash: CrashTmp{
			ThresholdPctStr: c.Crash.ThresholdPct.String(),
			MultiplierStr:   c.Crash.Multiplier.String(),
			CapStr:          c.Crash.Cap.String(),
		},
		Sources: SourcesTmp{
			HoldersURL:        c.Sources.HoldersURL,
			PricesCSVURL:      c.Sources.PricesCSVURL,
			CoinGeckoURL:      c.Sources.CoinGeckoURL,
			StrikeAPIBase:     c.Sources.StrikeAPIBase,
			BinanceBaseURL:    c.Sources.BinanceBaseURL,
			SpotSource:        c.Sources.SpotSource,
			SnapshotSource:    c.Sources.SnapshotSource,
			CacheTTL:          c.Sources.CacheTTL,
			RequestsPerSecond: strconv.FormatFloat(c.Sources.RequestsPerSecond, 'f', -1, 64),
		},
		Storage: StorageTmp{
			SQLitePath: c.Storage.SQLitePath,
			StateDir:   c.Storage.StateDir,
			WALDir:     c.Storage.WALDir,
		},
		Server:   ServerTmp{Addr: c.ServerAddr},
		Schedule: ScheduleTmp{RefreshCron: c.RefreshCron},
		Logging:  LoggingTmp{Level: c.LogLevel},
	}

	if !c.StartDate.IsZero() {
		tmp.StartDate = c.StartDate.String()
	}
	if c.MaxDaily.Valid {
		tmp.MaxDailyStr = c.MaxDaily.Decimal.String()
	}
	return tmp
}

func decimalOr(s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	return decimal.NewFromString(s)
}

func intOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
