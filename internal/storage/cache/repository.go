package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

const (
	balanceSnapshotTTL = 90 * time.Second
	priceTTL           = 300 * time.Second
	lastPriceTTL       = 24 * time.Hour
	tickerTTL          = 300 * time.Second
	rebalanceTTL       = 30 * 24 * time.Hour
	dailyTradesTTL     = 48 * time.Hour

	rebalanceHistoryLen = 50
	priceHistoryLen     = 100
	tradeHistoryLen     = 100

	keyBalanceSnapshot = "mexc:balance:snapshot"
	keyBalanceLast     = "mexc:balance:last"
	keyLegacyPrice     = "mexc:qrl_price"
	keyAccountCosts    = "mexc:account:costs"
)

func priceKey(symbol string) string      { return fmt.Sprintf("mexc:price:%s", symbol) }
func lastPriceKey(symbol string) string  { return fmt.Sprintf("mexc:price:last:%s", symbol) }
func tickerKey(symbol string) string     { return fmt.Sprintf("market:ticker:%s", symbol) }
func counterKey(name string) string      { return fmt.Sprintf("mexc:metrics:%s", name) }
func positionKey(symbol string) string   { return fmt.Sprintf("bot:%s:position", symbol) }
func historyKey(symbol string) string    { return fmt.Sprintf("bot:%s:price:history", symbol) }
func tradesKey(symbol string) string     { return fmt.Sprintf("bot:%s:trades:history", symbol) }
func lastTradeKey(symbol string) string  { return fmt.Sprintf("bot:%s:trades:last_time", symbol) }

func dailyTradesKey(symbol string, day time.Time) string {
	return fmt.Sprintf("bot:%s:trades:daily:%s", symbol, day.UTC().Format("20060102"))
}

func rebalanceKeys(symbol, strategy string) (last, history string) {
	prefix := fmt.Sprintf("bot:%s:rebalance", symbol)
	if strategy != "" && strategy != domain.StrategySymmetric {
		prefix = fmt.Sprintf("%s:%s", prefix, strategy)
	}
	return prefix + ":last", prefix + ":history"
}

type cachedPrice struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Repository typed access to every key the bot reads and writes.
// Each port used by services is a subset of its methods.
type Repository struct {
	store Store
}

// NewRepository creates a repository on top of store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Ping checks the store connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Repository) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return r.store.Set(ctx, key, payload, ttl)
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) error {
	payload, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

func (r *Repository) pushBounded(ctx context.Context, key string, v any, maxLen int64, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	if err := r.store.LPush(ctx, key, payload); err != nil {
		return err
	}
	if err := r.store.LTrim(ctx, key, 0, maxLen-1); err != nil {
		return err
	}
	if ttl > 0 {
		return r.store.Expire(ctx, key, ttl)
	}
	return nil
}

// SaveBalanceSnapshot writes the short-lived snapshot and the last-known-good copy.
func (r *Repository) SaveBalanceSnapshot(ctx context.Context, snap domain.BalanceSnapshot) error {
	if err := r.setJSON(ctx, keyBalanceSnapshot, snap, balanceSnapshotTTL); err != nil {
		return errors.Wrap(err, "save balance snapshot")
	}
	if err := r.setJSON(ctx, keyBalanceLast, snap, 0); err != nil {
		return errors.Wrap(err, "save last balance snapshot")
	}
	return nil
}

// BalanceSnapshot returns the fresh snapshot or ErrNotFound once it expired.
func (r *Repository) BalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot
	err := r.getJSON(ctx, keyBalanceSnapshot, &snap)
	return snap, err
}

// LastBalanceSnapshot returns the last-known-good snapshot.
func (r *Repository) LastBalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot
	err := r.getJSON(ctx, keyBalanceLast, &snap)
	return snap, err
}

// CachePrice writes the short-lived and the last-known price for symbol.
func (r *Repository) CachePrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	v := cachedPrice{Price: price, Timestamp: ts}
	if err := r.setJSON(ctx, priceKey(symbol), v, priceTTL); err != nil {
		return errors.Wrap(err, "cache price")
	}
	if err := r.setJSON(ctx, lastPriceKey(symbol), v, lastPriceTTL); err != nil {
		return errors.Wrap(err, "cache last price")
	}
	return nil
}

// CachedPrice reads the short-lived price.
func (r *Repository) CachedPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var v cachedPrice
	if err := r.getJSON(ctx, priceKey(symbol), &v); err != nil {
		return decimal.Zero, err
	}
	return v.Price, nil
}

// LastKnownPrice reads the long-lived price.
func (r *Repository) LastKnownPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var v cachedPrice
	if err := r.getJSON(ctx, lastPriceKey(symbol), &v); err != nil {
		return decimal.Zero, err
	}
	return v.Price, nil
}

// LegacyPrice reads the price kept under the old single-pair key as a plain number.
func (r *Repository) LegacyPrice(ctx context.Context) (decimal.Decimal, error) {
	payload, err := r.store.Get(ctx, keyLegacyPrice)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(strings.Trim(strings.TrimSpace(string(payload)), `"`))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "decode legacy price")
	}
	return price, nil
}

// SetLegacyPrice keeps the old single-pair key populated for older readers.
func (r *Repository) SetLegacyPrice(ctx context.Context, price decimal.Decimal) error {
	return r.store.Set(ctx, keyLegacyPrice, []byte(price.String()), lastPriceTTL)
}

// SaveTicker24h caches 24h statistics.
func (r *Repository) SaveTicker24h(ctx context.Context, t domain.Ticker24h) error {
	return r.setJSON(ctx, tickerKey(t.Symbol), t, tickerTTL)
}

// Ticker24h reads cached 24h statistics.
func (r *Repository) Ticker24h(ctx context.Context, symbol string) (domain.Ticker24h, error) {
	var t domain.Ticker24h
	err := r.getJSON(ctx, tickerKey(symbol), &t)
	return t, err
}

// AppendPriceHistory pushes price to the most-recent-first history.
func (r *Repository) AppendPriceHistory(ctx context.Context, symbol string, price decimal.Decimal) error {
	return r.pushBounded(ctx, historyKey(symbol), price, priceHistoryLen, 0)
}

// ReplacePriceHistory overwrites the history, prices are most-recent-first.
func (r *Repository) ReplacePriceHistory(ctx context.Context, symbol string, prices []decimal.Decimal) error {
	key := historyKey(symbol)
	if err := r.store.LTrim(ctx, key, 1, 0); err != nil {
		return err
	}
	for i := len(prices) - 1; i >= 0; i-- {
		payload, err := json.Marshal(prices[i])
		if err != nil {
			return errors.Wrap(err, "marshal price")
		}
		if err := r.store.LPush(ctx, key, payload); err != nil {
			return err
		}
	}
	return r.store.LTrim(ctx, key, 0, priceHistoryLen-1)
}

// PriceHistory returns up to limit prices, most-recent-first.
func (r *Repository) PriceHistory(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := r.store.LRange(ctx, historyKey(symbol), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, 0, len(raw))
	for _, item := range raw {
		var p decimal.Decimal
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, errors.Wrap(err, "decode price history")
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveCosts stores the latest cost/valuation report.
func (r *Repository) SaveCosts(ctx context.Context, costs any) error {
	return r.setJSON(ctx, keyAccountCosts, costs, 0)
}

// SaveRebalancePlan stores the plan as last and appends it to the bounded history.
func (r *Repository) SaveRebalancePlan(ctx context.Context, plan domain.RebalancePlan) error {
	last, history := rebalanceKeys(plan.Symbol, plan.Strategy)
	if err := r.setJSON(ctx, last, plan, rebalanceTTL); err != nil {
		return errors.Wrap(err, "save last rebalance plan")
	}
	if err := r.pushBounded(ctx, history, plan, rebalanceHistoryLen, rebalanceTTL); err != nil {
		return errors.Wrap(err, "append rebalance history")
	}
	return nil
}

// LastRebalancePlan returns the latest plan of strategy.
func (r *Repository) LastRebalancePlan(ctx context.Context, symbol, strategy string) (domain.RebalancePlan, error) {
	last, _ := rebalanceKeys(symbol, strategy)
	var plan domain.RebalancePlan
	err := r.getJSON(ctx, last, &plan)
	return plan, err
}

// RebalanceHistory returns up to limit recent plans, newest first.
func (r *Repository) RebalanceHistory(ctx context.Context, symbol, strategy string, limit int) ([]domain.RebalancePlan, error) {
	_, history := rebalanceKeys(symbol, strategy)
	if limit <= 0 || limit > rebalanceHistoryLen {
		limit = rebalanceHistoryLen
	}
	raw, err := r.store.LRange(ctx, history, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	plans := make([]domain.RebalancePlan, 0, len(raw))
	for _, item := range raw {
		var p domain.RebalancePlan
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, errors.Wrap(err, "decode rebalance plan")
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// IncrementDailyTrades bumps the per-day trade counter.
func (r *Repository) IncrementDailyTrades(ctx context.Context, symbol string, now time.Time) (int, error) {
	key := dailyTradesKey(symbol, now)
	n, err := r.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := r.store.Expire(ctx, key, dailyTradesTTL); err != nil {
		return 0, err
	}
	return int(n), nil
}

// DailyTrades returns the number of trades booked on the day of now.
func (r *Repository) DailyTrades(ctx context.Context, symbol string, now time.Time) (int, error) {
	payload, err := r.store.Get(ctx, dailyTradesKey(symbol, now))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(payload))
	if err != nil {
		return 0, errors.Wrap(err, "decode daily trades")
	}
	return n, nil
}

// SetLastTradeTime records the time of the latest trade.
func (r *Repository) SetLastTradeTime(ctx context.Context, symbol string, t time.Time) error {
	return r.store.Set(ctx, lastTradeKey(symbol), []byte(strconv.FormatInt(t.Unix(), 10)), 0)
}

// LastTradeTime returns nil when no trade has been recorded.
func (r *Repository) LastTradeTime(ctx context.Context, symbol string) (*time.Time, error) {
	payload, err := r.store.Get(ctx, lastTradeKey(symbol))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sec, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "decode last trade time")
	}
	t := time.Unix(sec, 0).UTC()
	return &t, nil
}

// AddTradeRecord appends a trade to the bounded history.
func (r *Repository) AddTradeRecord(ctx context.Context, rec domain.TradeRecord) error {
	return r.pushBounded(ctx, tradesKey(rec.Symbol), rec, tradeHistoryLen, 0)
}

// TradeHistory returns up to limit trades, newest first.
func (r *Repository) TradeHistory(ctx context.Context, symbol string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 || limit > tradeHistoryLen {
		limit = tradeHistoryLen
	}
	raw, err := r.store.LRange(ctx, tradesKey(symbol), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]domain.TradeRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.TradeRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		out = append(out, rec)
	}
	return out, nil
}

// SavePosition stores the position of symbol.
func (r *Repository) SavePosition(ctx context.Context, symbol string, pos domain.Position) error {
	return r.setJSON(ctx, positionKey(symbol), pos, 0)
}

// Position returns nil without error when no position has been stored.
func (r *Repository) Position(ctx context.Context, symbol string) (*domain.Position, error) {
	var pos domain.Position
	err := r.getJSON(ctx, positionKey(symbol), &pos)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// IncrCounter bumps a named counter.
func (r *Repository) IncrCounter(ctx context.Context, name string) (int64, error) {
	return r.store.Incr(ctx, counterKey(name))
}

// ResetCounter sets a named counter back to zero.
func (r *Repository) ResetCounter(ctx context.Context, name string) error {
	return r.store.Set(ctx, counterKey(name), []byte("0"), 0)
}

// Counter returns the value of a named counter, zero when unset.
func (r *Repository) Counter(ctx context.Context, name string) (int64, error) {
	payload, err := r.store.Get(ctx, counterKey(name))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "decode counter %s", name)
	}
	return n, nil
}
