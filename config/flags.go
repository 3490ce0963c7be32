package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// GeneratedFile file written by the setup wizard.
const GeneratedFile = "config.gen.yaml"

// Flags command line options.
type Flags struct {
	ConfigPath string
	EnvFile    string
	Setup      bool

	// overrides applied on top of the yaml config
	Pair     string
	Platform string
	Addr     string
	Live     bool
	liveSet  bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	set := flag.NewFlagSet("qrlbot", flag.ContinueOnError)
	set.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	set.StringVar(&f.EnvFile, "env", ".env", "dotenv file with secrets, ignored when missing")
	set.BoolVar(&f.Setup, "setup", false, "run the interactive config wizard")
	set.StringVar(&f.Pair, "pair", "", "trade pair override, example: QRL_USDT")
	set.StringVar(&f.Platform, "platform", "", "exchange override: mexc, binance or bybit")
	set.StringVar(&f.Addr, "addr", "", "http listen address override, example: :8080")
	set.BoolVar(&f.Live, "live", false, "send real orders to the exchange")
	if err := set.Parse(args); err != nil {
		return Flags{}, err
	}
	set.Visit(func(fl *flag.Flag) {
		if fl.Name == "live" {
			f.liveSet = true
		}
	})
	return f, nil
}

// Apply overrides cfg with the flags that were given.
func (f Flags) Apply(cfg *Config) error {
	if f.Pair != "" {
		pair, err := domain.ParsePair(f.Pair)
		if err != nil {
			return fmt.Errorf("invalid --pair provided, --pair=%s: %w", f.Pair, err)
		}
		cfg.Pair = pair
	}
	if f.Platform != "" {
		platform := strings.ToLower(f.Platform)
		if err := validatePlatform(platform); err != nil {
			return fmt.Errorf("invalid --platform provided: %w", err)
		}
		cfg.Platform = platform
	}
	if f.Addr != "" {
		cfg.HTTPAddr = f.Addr
	}
	if f.liveSet {
		cfg.Live = f.Live
	}
	return nil
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// process environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Get parses flags, loads the dotenv file and the yaml config.
// Platform credentials are re-read after flag overrides.
func Get(args []string, getenv func(string) string) (Config, Flags, error) {
	f, err := ParseFlags(args)
	if err != nil {
		return Config{}, Flags{}, err
	}
	if err := LoadEnvFile(f.EnvFile); err != nil {
		return Config{}, Flags{}, err
	}
	cfg, err := Load(f.ConfigPath, getenv)
	if err != nil {
		return Config{}, Flags{}, err
	}
	if err := f.Apply(&cfg); err != nil {
		return Config{}, Flags{}, err
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, Flags{}, err
	}
	return cfg, f, nil
}
