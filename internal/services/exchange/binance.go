package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

type Binance struct {
	client *binance.Client
	l      *zap.Logger
}

func NewBinance(client *binance.Client, l *zap.Logger) *Binance {
	return &Binance{client: client, l: l}
}

func (b *Binance) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "failed to get binance account balance")
	}

	info := domain.AccountInfo{Balances: make([]domain.RawBalance, 0, len(account.Balances))}
	for _, balance := range account.Balances {
		info.Balances = append(info.Balances, domain.RawBalance{
			Asset:  balance.Asset,
			Free:   balance.Free,
			Locked: balance.Locked,
		})
	}
	return info, nil
}

func (b *Binance) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get binance price for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("binance API returned empty prices for %s", symbol)
	}
	return parseDecimal("price", prices[0].Price)
}

func (b *Binance) Ticker24hr(ctx context.Context, symbol string) (domain.Ticker24h, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Ticker24h{}, errors.Wrapf(err, "failed to get binance 24h ticker for %s", symbol)
	}
	if len(stats) == 0 {
		return domain.Ticker24h{}, fmt.Errorf("binance API returned empty 24h stats for %s", symbol)
	}
	s := stats[0]

	t := domain.Ticker24h{Symbol: symbol}
	if t.LastPrice, err = parseDecimal("lastPrice", s.LastPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.Volume, err = parseDecimal("volume", s.Volume); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.PriceChangePercent, err = parseDecimal("priceChangePercent", s.PriceChangePercent); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.HighPrice, err = parseDecimal("highPrice", s.HighPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.LowPrice, err = parseDecimal("lowPrice", s.LowPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	return t, nil
}

func (b *Binance) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	result := make([]domain.Kline, len(klines))
	for i, k := range klines {
		values := []struct {
			dst *decimal.Decimal
			raw string
		}{
			{&result[i].Open, k.Open},
			{&result[i].High, k.High},
			{&result[i].Low, k.Low},
			{&result[i].Close, k.Close},
			{&result[i].Volume, k.Volume},
		}
		for _, v := range values {
			parsed, err := decimal.NewFromString(v.raw)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse kline at index %d", i)
			}
			*v.dst = parsed
		}
		result[i].OpenTime = time.UnixMilli(k.OpenTime).UTC()
	}
	return result, nil
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, quantity decimal.Decimal, clientOrderID string) (domain.OrderResult, error) {
	if err := validateOrder(side, quantity); err != nil {
		return domain.OrderResult{}, err
	}
	quantity = quantity.RoundFloor(4)

	svc := b.client.NewCreateOrderService().Symbol(symbol).
		Side(binance.SideType(side.String())).Type(binance.OrderTypeMarket).
		Quantity(quantity.String())
	if clientOrderID != "" {
		svc = svc.NewClientOrderID(clientOrderID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to place binance %s order", side)
	}

	executed, err := parseDecimal("executedQty", resp.ExecutedQuantity)
	if err != nil {
		return domain.OrderResult{}, err
	}
	quoteQty, err := parseDecimal("cummulativeQuoteQty", resp.CummulativeQuoteQuantity)
	if err != nil {
		return domain.OrderResult{}, err
	}
	b.l.Info("binance market order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("quantity", quantity.String()),
		zap.Int64("order_id", resp.OrderID))

	return domain.OrderResult{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Status:      string(resp.Status),
		ExecutedQty: executed,
		QuoteQty:    quoteQty,
	}, nil
}
