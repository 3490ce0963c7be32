package internal

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/config"
	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/jobs"
	"github.com/vadiminshakov/qrlbot/internal/scheduler"
	"github.com/vadiminshakov/qrlbot/internal/services/exchange"
	"github.com/vadiminshakov/qrlbot/internal/services/position"
	"github.com/vadiminshakov/qrlbot/internal/services/pricer"
	"github.com/vadiminshakov/qrlbot/internal/services/rebalance"
	"github.com/vadiminshakov/qrlbot/internal/services/risk"
	"github.com/vadiminshakov/qrlbot/internal/services/snapshot"
	"github.com/vadiminshakov/qrlbot/internal/services/strategy"
	"github.com/vadiminshakov/qrlbot/internal/services/trader"
	"github.com/vadiminshakov/qrlbot/internal/services/workflow"
	"github.com/vadiminshakov/qrlbot/internal/storage/cache"
	"github.com/vadiminshakov/qrlbot/internal/storage/journal"
	"github.com/vadiminshakov/qrlbot/internal/web"
)

const rsiPeriod = 14

// TradingBot wires the exchange, the cache, the services and the jobs for one pair.
type TradingBot struct {
	Config config.Config

	l       *zap.Logger
	store   cache.Store
	journal *journal.WALStore
	runner  *jobs.Runner
	tasks   []jobs.Task
	sched   map[string]string
	server  *web.Server
}

// NewTradingBot creates a bot instance on top of an exchange client.
func NewTradingBot(conf config.Config, client any, l *zap.Logger) (*TradingBot, error) {
	l = l.With(zap.String("pair", conf.Pair.String()), zap.String("platform", conf.Platform))

	ex, err := exchange.New(client, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exchange adapter")
	}

	store, err := newStore(conf)
	if err != nil {
		return nil, err
	}

	jr, err := journal.NewWALStore(conf.WALDir)
	if err != nil {
		closeStore(store)
		return nil, errors.Wrap(err, "failed to open decision journal")
	}

	repo := cache.NewRepository(store)
	pair := conf.Pair

	prices := pricer.NewResolver(l, pair, ex, repo)
	snapshots := snapshot.NewResolver(l, pair, ex, prices, repo)
	sizing := position.NewManager(conf.MaxPositionFraction, conf.CorePositionPct)

	ma, err := strategy.NewMACrossover(conf.ShortPeriod, conf.LongPeriod)
	if err != nil {
		closeStore(store)
		_ = jr.Close()
		return nil, errors.Wrap(err, "failed to create MA crossover strategy")
	}

	wf := workflow.New(l, pair, workflow.Deps{
		Prices:    prices,
		History:   repo,
		Positions: repo,
		Stats:     repo,
		Balances:  snapshots,
		Strategy:  ma,
		Risk:      risk.NewManager(conf.MaxDailyTrades, conf.MinTradeInterval, nil),
		Sizing:    sizing,
	})
	executor := trader.NewExecutor(l, pair, ex, repo, jr, sizing, conf.Live)

	symmetric := rebalance.NewSymmetric(l, pair, rebalance.Params{
		TargetRatio:     conf.TargetRatio,
		MinNotionalUSDT: conf.MinNotionalUSDT,
		ThresholdPct:    conf.ThresholdPct,
	}, repo)
	intelligent := rebalance.NewIntelligent(l, symmetric, rebalance.IntelligentParams{
		ShortPeriod: conf.ShortPeriod,
		LongPeriod:  conf.LongPeriod,
		SellMargin:  conf.SellMargin,
		CorePct:     conf.CorePositionPct,
		SwingPct:    conf.SwingPct,
	}, repo, repo, repo)

	b := &TradingBot{
		Config:  conf,
		l:       l,
		store:   store,
		journal: jr,
		runner:  jobs.NewRunner(l, conf.Credentials.Set),
		sched:   make(map[string]string),
	}

	add := func(name string, build func(p jobs.Policy) jobs.Task) {
		p, schedule := jobSettings(conf, name)
		t := build(p)
		b.tasks = append(b.tasks, t)
		b.sched[t.Name()] = schedule
	}
	add(config.JobBalance, func(p jobs.Policy) jobs.Task {
		return jobs.NewBalanceJob(snapshots, repo, p)
	})
	add(config.JobPrice, func(p jobs.Policy) jobs.Task {
		return jobs.NewPriceJob(pair, prices, ex, repo, p, jobs.IndicatorPeriods{
			Short: conf.ShortPeriod,
			Long:  conf.LongPeriod,
			RSI:   rsiPeriod,
		})
	})
	add(config.JobCost, func(p jobs.Policy) jobs.Task {
		return jobs.NewCostJob(pair, snapshots, prices, repo, sizing, p)
	})
	add(config.JobRebalance, func(p jobs.Policy) jobs.Task {
		return jobs.NewRebalanceJob(domain.StrategySymmetric, snapshots, symmetric, jr, p)
	})
	add(config.JobIntelligent, func(p jobs.Policy) jobs.Task {
		return jobs.NewRebalanceJob(domain.StrategyIntelligent, snapshots, intelligent, jr, p)
	})
	add(config.JobTrading, func(p jobs.Policy) jobs.Task {
		return jobs.NewTradingJob(pair, wf, executor, jr, p)
	})

	b.server = web.NewServer(conf.HTTPAddr, l, pair, b.runner, b.tasks, repo, snapshots, jr)

	if !conf.Credentials.Set() {
		l.Warn("exchange API keys are not configured, signed jobs will be skipped")
	}
	if !conf.Live {
		l.Info("dry-run mode, orders are recorded but not sent")
	}

	return b, nil
}

// Tasks registered jobs.
func (b *TradingBot) Tasks() []jobs.Task {
	return b.tasks
}

// Schedule cron expression of the named task.
func (b *TradingBot) Schedule(task string) string {
	return b.sched[task]
}

// Run serves the job endpoints and, when enabled, triggers jobs in-process
// until ctx is cancelled.
func (b *TradingBot) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if b.Config.Scheduler {
		s := scheduler.New(ctx, b.l, b.runner)
		for _, t := range b.tasks {
			if err := s.Add(b.sched[t.Name()], t); err != nil {
				return errors.Wrapf(err, "failed to schedule %s", t.Name())
			}
		}
		s.Start()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			s.Stop()
		}()
	}

	err := b.server.Start(ctx)
	wg.Wait()
	return err
}

// Close releases the journal and the cache connection.
func (b *TradingBot) Close() {
	if err := b.journal.Close(); err != nil {
		b.l.Error("failed to close journal", zap.Error(err))
	}
	closeStore(b.store)
}

func newStore(conf config.Config) (cache.Store, error) {
	if conf.RedisURL == "" {
		return cache.NewMemoryStore(nil), nil
	}
	store, err := cache.NewRedisStoreFromURL(conf.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return store, nil
}

func closeStore(store cache.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
