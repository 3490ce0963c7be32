// Command qrlbot runs the QRL/USDT decision and execution engine: scheduled
// balance, price and cost jobs, symmetric and intelligent rebalance planners
// and the MA-crossover trading cycle, exposed as HTTP job endpoints.
//
// Usage:
//
//	qrlbot --config config.yaml
//	qrlbot --setup            (interactive wizard, writes config.gen.yaml)
//	qrlbot --platform binance --live
//
// Environment variables:
//
//	For MEXC: MEXC_API_KEY, MEXC_SECRET_KEY
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	REDIS_URL, PORT, TRADING_LIVE
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/config"
	"github.com/vadiminshakov/qrlbot/internal"
	"github.com/vadiminshakov/qrlbot/internal/setup"
)

func main() {
	conf, flags, err := config.Get(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		flags.ConfigPath = config.GeneratedFile
		if conf, err = config.Load(flags.ConfigPath, os.Getenv); err != nil {
			log.Fatal(err)
		}
		if err := flags.Apply(&conf); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	client, err := internal.NewClient(conf)
	if err != nil {
		logger.Fatal("failed to create exchange client", zap.Error(err))
	}

	bot, err := internal.NewTradingBot(conf, client, logger)
	if err != nil {
		logger.Fatal("failed to create trading bot", zap.Error(err))
	}
	defer bot.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting qrlbot",
		zap.String("pair", conf.Pair.String()),
		zap.String("platform", conf.Platform),
		zap.Bool("live", conf.Live),
		zap.Bool("scheduler", conf.Scheduler))

	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
	}
}
