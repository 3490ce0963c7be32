package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/qrlbot/config"
	"github.com/vadiminshakov/qrlbot/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers values collected by the wizard.
type Answers struct {
	Platform         string
	Pair             string
	Live             bool
	Scheduler        bool
	RedisURL         string
	MaxPositionFrac  string
	MaxDailyTrades   string
	MinTradeInterval string
	ShortPeriod      string
	LongPeriod       string
	TargetRatio      string
	ThresholdPct     string
	SellMargin       string
}

func defaultAnswers() Answers {
	d := config.Default()
	return Answers{
		Platform:         d.Platform,
		Pair:             d.Pair.String(),
		Scheduler:        true,
		MaxPositionFrac:  d.MaxPositionFraction.String(),
		MaxDailyTrades:   strconv.Itoa(d.MaxDailyTrades),
		MinTradeInterval: d.MinTradeInterval.String(),
		ShortPeriod:      strconv.Itoa(d.ShortPeriod),
		LongPeriod:       strconv.Itoa(d.LongPeriod),
		TargetRatio:      d.TargetRatio.String(),
		ThresholdPct:     d.ThresholdPct.String(),
		SellMargin:       d.SellMargin.String(),
	}
}

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	a := defaultAnswers()
	var confirm bool

	header := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("QRLBOT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(step))
	}

	header("STEP 1: EXCHANGE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("API keys are read from the environment, never from the config file.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("MEXC", config.PlatformMEXC),
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
				).
				Value(&a.Platform),
			huh.NewInput().
				Title("Trading Pair").
				Description("BASE_QUOTE, e.g. QRL_USDT").
				Value(&a.Pair).
				Validate(func(s string) error {
					_, err := domain.ParsePair(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 2: EXECUTION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send real orders?").
				Description("No keeps the bot in dry-run mode").
				Value(&a.Live),
			huh.NewConfirm().
				Title("Run jobs with the in-process scheduler?").
				Value(&a.Scheduler),
			huh.NewInput().
				Title("Redis URL").
				Description("Empty uses the in-memory store").
				Value(&a.RedisURL),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 3: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Max position fraction").
				Description("Share of holdings a single trade may move (0-1)").
				Value(&a.MaxPositionFrac).
				Validate(validateFraction),
			huh.NewInput().
				Title("Max trades per day").
				Value(&a.MaxDailyTrades).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Min interval between trades").
				Description("Duration string (e.g. 5m)").
				Value(&a.MinTradeInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 4: STRATEGY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Short MA period").Value(&a.ShortPeriod).Validate(validatePositiveInt),
			huh.NewInput().Title("Long MA period").Value(&a.LongPeriod).Validate(validatePositiveInt),
			huh.NewInput().
				Title("Rebalance target ratio").
				Description("QRL share of total value (0-1)").
				Value(&a.TargetRatio).
				Validate(validateFraction),
			huh.NewInput().
				Title("Rebalance threshold").
				Description("Deviation from target before acting (0-1)").
				Value(&a.ThresholdPct).
				Validate(validateFraction),
			huh.NewInput().
				Title("Sell margin").
				Description("Required premium over cost basis (0-1)").
				Value(&a.SellMargin).
				Validate(validateFraction),
		),
	).Run()
	if err != nil {
		return err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nLive: %t\nScheduler: %t\nMA: %s/%s\n",
		a.Platform, a.Pair, a.Live, a.Scheduler, a.ShortPeriod, a.LongPeriod,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Write(config.GeneratedFile, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", config.GeneratedFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// Write renders answers as yaml config into filename.
func Write(filename string, a Answers) error {
	cfgTmp, err := a.toConfigTmp()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func (a Answers) toConfigTmp() (config.ConfigTmp, error) {
	interval, err := time.ParseDuration(a.MinTradeInterval)
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid min trade interval %q: %w", a.MinTradeInterval, err)
	}
	return config.ConfigTmp{
		Platform:               a.Platform,
		Pair:                   a.Pair,
		RedisURL:               a.RedisURL,
		Live:                   a.Live,
		Scheduler:              a.Scheduler,
		MaxPositionFractionStr: a.MaxPositionFrac,
		MaxDailyTradesStr:      a.MaxDailyTrades,
		MinTradeInterval:       interval,
		ShortPeriodStr:         a.ShortPeriod,
		LongPeriodStr:          a.LongPeriod,
		TargetRatioStr:         a.TargetRatio,
		ThresholdPctStr:        a.ThresholdPct,
		SellMarginStr:          a.SellMargin,
	}, nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}
