package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// Supported exchange platforms.
const (
	PlatformMEXC    = "mexc"
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"
)

const (
	defaultPair     = "QRL_USDT"
	defaultHTTPAddr = ":8080"
	defaultWALDir   = "./wal/journal"
)

// Job names used as keys of the jobs section.
const (
	JobBalance     = "balance"
	JobPrice       = "price"
	JobCost        = "cost"
	JobRebalance   = "rebalance"
	JobIntelligent = "intelligent"
	JobTrading     = "trading"
)

// Config runtime configuration of the bot.
type Config struct {
	Platform string
	Pair     domain.Pair
	HTTPAddr string
	// RedisURL empty means the in-process memory store.
	RedisURL string
	WALDir   string
	// Live sends orders to the exchange; otherwise trades are only recorded.
	Live bool
	// Scheduler runs jobs in-process on their cron schedules.
	Scheduler bool

	MaxPositionFraction decimal.Decimal
	CorePositionPct     decimal.Decimal
	MaxDailyTrades      int
	MinTradeInterval    time.Duration

	ShortPeriod int
	LongPeriod  int

	TargetRatio     decimal.Decimal
	MinNotionalUSDT decimal.Decimal
	ThresholdPct    decimal.Decimal
	SellMargin      decimal.Decimal
	SwingPct        decimal.Decimal

	Jobs        map[string]JobConfig
	Credentials Credentials
}

// JobConfig optional per-job overrides; zero values keep the job defaults.
type JobConfig struct {
	Attempts int           `yaml:"attempts,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Backoff  time.Duration `yaml:"backoff,omitempty"`
	Schedule string        `yaml:"schedule,omitempty"`
}

// Credentials exchange API keys, read from the environment only.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Set reports whether both key and secret are present.
func (c Credentials) Set() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// ConfigTmp raw yaml representation.
type ConfigTmp struct {
	Platform  string `yaml:"platform"`
	Pair      string `yaml:"pair"`
	HTTPAddr  string `yaml:"http_addr,omitempty"`
	RedisURL  string `yaml:"redis_url,omitempty"`
	WALDir    string `yaml:"wal_dir,omitempty"`
	Live      bool   `yaml:"live"`
	Scheduler bool   `yaml:"scheduler"`

	MaxPositionFractionStr string        `yaml:"max_position_fraction,omitempty"`
	CorePositionPctStr     string        `yaml:"core_position_pct,omitempty"`
	MaxDailyTradesStr      string        `yaml:"max_daily_trades,omitempty"`
	MinTradeInterval       time.Duration `yaml:"min_trade_interval,omitempty"`

	ShortPeriodStr string `yaml:"short_period,omitempty"`
	LongPeriodStr  string `yaml:"long_period,omitempty"`

	TargetRatioStr     string `yaml:"target_ratio,omitempty"`
	MinNotionalUSDTStr string `yaml:"min_notional_usdt,omitempty"`
	ThresholdPctStr    string `yaml:"threshold_pct,omitempty"`
	SellMarginStr      string `yaml:"sell_margin,omitempty"`
	SwingPctStr        string `yaml:"swing_pct,omitempty"`

	Jobs map[string]JobConfig `yaml:"jobs,omitempty"`
}

// Default configuration: dry-run MEXC QRL/USDT with the in-memory store.
func Default() Config {
	pair, _ := domain.ParsePair(defaultPair)
	return Config{
		Platform:            PlatformMEXC,
		Pair:                pair,
		HTTPAddr:            defaultHTTPAddr,
		WALDir:              defaultWALDir,
		MaxPositionFraction: decimal.RequireFromString("0.3"),
		CorePositionPct:     decimal.RequireFromString("0.7"),
		MaxDailyTrades:      5,
		MinTradeInterval:    300 * time.Second,
		ShortPeriod:         7,
		LongPeriod:          25,
		TargetRatio:         decimal.RequireFromString("0.5"),
		MinNotionalUSDT:     decimal.NewFromInt(5),
		ThresholdPct:        decimal.RequireFromString("0.01"),
		SellMargin:          decimal.RequireFromString("0.03"),
		SwingPct:            decimal.RequireFromString("0.2"),
		Jobs:                map[string]JobConfig{},
	}
}

// Load reads the yaml file at path, or uses defaults when path is empty, and
// applies environment overrides through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = getYaml(path)
		if err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, err
	}
	return c.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.Platform != "" {
		cfg.Platform = strings.ToLower(c.Platform)
	}
	if err := validatePlatform(cfg.Platform); err != nil {
		return Config{}, fmt.Errorf("incorrect 'platform' param in yaml config: %w", err)
	}
	if c.Pair != "" {
		pair, err := domain.ParsePair(c.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", c.Pair, err)
		}
		cfg.Pair = pair
	}
	if c.HTTPAddr != "" {
		cfg.HTTPAddr = c.HTTPAddr
	}
	if c.WALDir != "" {
		cfg.WALDir = c.WALDir
	}
	cfg.RedisURL = c.RedisURL
	cfg.Live = c.Live
	cfg.Scheduler = c.Scheduler
	if c.MinTradeInterval != 0 {
		cfg.MinTradeInterval = c.MinTradeInterval
	}

	fractions := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"max_position_fraction", c.MaxPositionFractionStr, &cfg.MaxPositionFraction},
		{"core_position_pct", c.CorePositionPctStr, &cfg.CorePositionPct},
		{"target_ratio", c.TargetRatioStr, &cfg.TargetRatio},
		{"threshold_pct", c.ThresholdPctStr, &cfg.ThresholdPct},
		{"sell_margin", c.SellMarginStr, &cfg.SellMargin},
		{"swing_pct", c.SwingPctStr, &cfg.SwingPct},
	}
	for _, f := range fractions {
		if f.raw == "" {
			continue
		}
		d, err := parseFraction(f.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal between 0 and 1), error: %w", f.name, err)
		}
		*f.dst = d
	}

	if c.MinNotionalUSDTStr != "" {
		d, err := decimal.NewFromString(c.MinNotionalUSDTStr)
		if err != nil || d.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'min_notional_usdt' param in yaml config (must be a non-negative decimal): %s", c.MinNotionalUSDTStr)
		}
		cfg.MinNotionalUSDT = d
	}

	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"max_daily_trades", c.MaxDailyTradesStr, &cfg.MaxDailyTrades},
		{"short_period", c.ShortPeriodStr, &cfg.ShortPeriod},
		{"long_period", c.LongPeriodStr, &cfg.LongPeriod},
	}
	for _, i := range ints {
		if i.raw == "" {
			continue
		}
		n, err := strconv.Atoi(i.raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a positive integer): %s", i.name, i.raw)
		}
		*i.dst = n
	}
	if cfg.ShortPeriod >= cfg.LongPeriod {
		return Config{}, fmt.Errorf("incorrect 'short_period' param in yaml config: must be less than long_period (%d >= %d)", cfg.ShortPeriod, cfg.LongPeriod)
	}
	if cfg.CorePositionPct.Add(cfg.SwingPct).GreaterThan(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("incorrect 'swing_pct' param in yaml config: core_position_pct + swing_pct exceeds 1")
	}

	for name, job := range c.Jobs {
		if !knownJob(name) {
			return Config{}, fmt.Errorf("incorrect 'jobs' param in yaml config: unknown job %q", name)
		}
		if job.Attempts < 0 || job.Timeout < 0 || job.Backoff < 0 {
			return Config{}, fmt.Errorf("incorrect 'jobs.%s' param in yaml config: negative values are not allowed", name)
		}
		cfg.Jobs[name] = job
	}

	return cfg, nil
}

// applyEnv reads secrets and deployment overrides from the environment.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch cfg.Platform {
	case PlatformMEXC:
		cfg.Credentials = Credentials{APIKey: getenv("MEXC_API_KEY"), APISecret: getenv("MEXC_SECRET_KEY")}
	case PlatformBinance:
		cfg.Credentials = Credentials{APIKey: getenv("BINANCE_API_KEY"), APISecret: getenv("BINANCE_API_SECRET")}
	case PlatformBybit:
		cfg.Credentials = Credentials{APIKey: getenv("BYBIT_API_KEY"), APISecret: getenv("BYBIT_API_SECRET")}
	}

	if v := getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT environment variable %q: %w", v, err)
		}
		cfg.HTTPAddr = ":" + v
	}
	if v := getenv("TRADING_LIVE"); v != "" {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRADING_LIVE environment variable %q: %w", v, err)
		}
		cfg.Live = live
	}
	return nil
}

func parseFraction(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s is out of range", s)
	}
	return d, nil
}

func validatePlatform(p string) error {
	switch p {
	case PlatformMEXC, PlatformBinance, PlatformBybit:
		return nil
	default:
		return fmt.Errorf("unsupported platform %q", p)
	}
}

func knownJob(name string) bool {
	switch name {
	case JobBalance, JobPrice, JobCost, JobRebalance, JobIntelligent, JobTrading:
		return true
	default:
		return false
	}
}
