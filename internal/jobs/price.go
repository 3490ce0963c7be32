package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/metrics"
	"github.com/vadiminshakov/qrlbot/internal/services/exchange"
	"github.com/vadiminshakov/qrlbot/internal/services/pricer"
	"github.com/vadiminshakov/qrlbot/pkg/indicators"
)

// TaskPriceSync name of the price synchronisation job.
const TaskPriceSync = "05-min-job"

// DefaultPricePolicy three attempts of at most 6s each.
var DefaultPricePolicy = Policy{Attempts: 3, Timeout: 6 * time.Second, Backoff: time.Second}

const historyWindow = 100

// seedInterval candle width matching the job schedule.
const seedInterval = "5m"

type quoteSource interface {
	FromExchange(ctx context.Context, symbol string) (pricer.Quote, error)
	FromCache(ctx context.Context, symbol string) (pricer.Quote, error)
}

type marketFeed interface {
	Ticker24hr(ctx context.Context, symbol string) (domain.Ticker24h, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error)
}

type marketCache interface {
	counterStore
	LastKnownPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	SaveTicker24h(ctx context.Context, t domain.Ticker24h) error
	AppendPriceHistory(ctx context.Context, symbol string, price decimal.Decimal) error
	ReplacePriceHistory(ctx context.Context, symbol string, prices []decimal.Decimal) error
	PriceHistory(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error)
}

// IndicatorPeriods periods of the EMA pair and the RSI reported by the price job.
type IndicatorPeriods struct {
	Short int
	Long  int
	RSI   int
}

// DefaultIndicatorPeriods EMA 7/25 and RSI 14.
var DefaultIndicatorPeriods = IndicatorPeriods{Short: 7, Long: 25, RSI: 14}

// PriceData payload of the price job.
type PriceData struct {
	Symbol      string              `json:"symbol"`
	Price       *decimal.Decimal    `json:"price"`
	PriceSource domain.PriceSource  `json:"price_source"`
	Changed     bool                `json:"changed"`
	Seeded      int                 `json:"seeded,omitempty"`
	Ticker      *domain.Ticker24h   `json:"ticker,omitempty"`
	Indicators  *indicators.Summary `json:"indicators,omitempty"`
}

// PriceJob refreshes the cached price, the 24h ticker and the price history.
type PriceJob struct {
	pair    domain.Pair
	quotes  quoteSource
	market  marketFeed
	cache   marketCache
	policy  Policy
	periods IndicatorPeriods
	now     func() time.Time
}

// NewPriceJob creates the job. market may be nil, which skips the ticker and
// the history backfill.
func NewPriceJob(pair domain.Pair, quotes quoteSource, market marketFeed, cache marketCache, policy Policy, periods IndicatorPeriods) *PriceJob {
	return &PriceJob{
		pair:    pair,
		quotes:  quotes,
		market:  market,
		cache:   cache,
		policy:  policy,
		periods: periods,
		now:     time.Now,
	}
}

func (j *PriceJob) Name() string { return TaskPriceSync }

func (j *PriceJob) RequiresCredentials() bool { return false }

// Run fetches the live price with retries and falls back to the cache chain
// when the exchange cannot be reached.
func (j *PriceJob) Run(ctx context.Context, run *Run) domain.TaskResult {
	symbol := j.pair.Symbol()
	meta := run.Metadata()

	prev, prevErr := j.cache.LastKnownPrice(ctx, symbol)

	started := j.now()
	quote, err := withRetry(ctx, run, j.policy, func(ctx context.Context) (pricer.Quote, error) {
		return j.quotes.FromExchange(ctx, symbol)
	})
	if err != nil {
		return j.fallback(ctx, run, meta, err)
	}
	metrics.PriceFetchLatency.Set(j.now().Sub(started).Seconds())

	data := PriceData{Symbol: symbol, Price: &quote.Price, PriceSource: quote.Source}
	if prevErr == nil && !prev.Equal(quote.Price) {
		data.Changed = true
		count(ctx, run, j.cache, CounterPriceChange)
	}

	data.Seeded = j.seedHistory(ctx, run, symbol)
	if err := j.cache.AppendPriceHistory(ctx, symbol, quote.Price); err != nil {
		run.l.Warn("failed to append price history", zap.Error(err))
	}
	data.Ticker = j.ticker(ctx, run, symbol)
	data.Indicators = j.summary(ctx, run, symbol)

	meta.Source = domain.SourceExchange
	meta.PriceSource = quote.Source
	return domain.TaskResult{Status: domain.TaskStatusSuccess, Data: data, Metadata: meta}
}

func (j *PriceJob) fallback(ctx context.Context, run *Run, meta domain.TaskMetadata, cause error) domain.TaskResult {
	symbol := j.pair.Symbol()
	count(ctx, run, j.cache, CounterPriceSyncFail)

	quote, err := j.quotes.FromCache(ctx, symbol)
	if err != nil {
		count(ctx, run, j.cache, CounterPriceMissing)
		meta.PriceSource = domain.PriceSourceMissing
		meta.PriceMissing = true
		res := failed(meta, domain.SourceFallback, cause)
		res.Data = PriceData{Symbol: symbol, PriceSource: domain.PriceSourceMissing}
		return res
	}

	meta.Source = domain.SourceFallback
	meta.PriceSource = quote.Source
	meta.Error = cause.Error()
	return domain.TaskResult{
		Status:   domain.TaskStatusDegraded,
		Reason:   "exchange price unavailable, serving cached price",
		Data:     PriceData{Symbol: symbol, Price: &quote.Price, PriceSource: quote.Source},
		Metadata: meta,
	}
}

// ticker fetches and stores the 24h statistics once; failures only drop the ticker.
func (j *PriceJob) ticker(ctx context.Context, run *Run, symbol string) *domain.Ticker24h {
	if j.market == nil {
		return nil
	}
	tctx, cancel := j.attemptContext(ctx)
	defer cancel()

	t, err := j.market.Ticker24hr(tctx, symbol)
	if err != nil {
		run.l.Warn("24h ticker unavailable", zap.Error(err))
		return nil
	}
	if err := j.cache.SaveTicker24h(ctx, t); err != nil {
		run.l.Warn("failed to cache 24h ticker", zap.Error(err))
	}
	return &t
}

// seedHistory backfills the history from exchange candles while it is shorter
// than the long period, so crossovers are available right after a cold start.
func (j *PriceJob) seedHistory(ctx context.Context, run *Run, symbol string) int {
	if j.market == nil {
		return 0
	}
	history, err := j.cache.PriceHistory(ctx, symbol, historyWindow)
	if err != nil || len(history) >= j.periods.Long {
		return 0
	}

	kctx, cancel := j.attemptContext(ctx)
	defer cancel()
	klines, err := j.market.Klines(kctx, symbol, seedInterval, historyWindow)
	if err != nil {
		if errors.Is(err, exchange.ErrUnsupported) {
			run.l.Debug("history backfill not supported", zap.Error(err))
		} else {
			run.l.Warn("history backfill failed", zap.Error(err))
		}
		return 0
	}

	closes := domain.ClosesNewestFirst(klines)
	if len(closes) <= len(history) {
		return 0
	}
	if err := j.cache.ReplacePriceHistory(ctx, symbol, closes); err != nil {
		run.l.Warn("failed to store backfilled history", zap.Error(err))
		return 0
	}
	run.l.Info("price history backfilled", zap.Int("closes", len(closes)), zap.Int("previous", len(history)))
	return len(closes)
}

func (j *PriceJob) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if j.policy.Timeout > 0 {
		return context.WithTimeout(ctx, j.policy.Timeout)
	}
	return context.WithCancel(ctx)
}

func (j *PriceJob) summary(ctx context.Context, run *Run, symbol string) *indicators.Summary {
	history, err := j.cache.PriceHistory(ctx, symbol, historyWindow)
	if err != nil {
		run.l.Warn("failed to load price history", zap.Error(err))
		return nil
	}
	summary, err := indicators.Summarize(history, j.periods.Short, j.periods.Long, j.periods.RSI)
	if err != nil {
		run.l.Debug("indicators skipped", zap.Int("history", len(history)), zap.Error(err))
		return nil
	}
	return &summary
}
