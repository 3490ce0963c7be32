package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/clients"
	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// MEXC adapter over the MEXC spot v3 REST API.
type MEXC struct {
	client *clients.MEXCClient
	l      *zap.Logger
}

func NewMEXC(client *clients.MEXCClient, l *zap.Logger) *MEXC {
	return &MEXC{client: client, l: l}
}

func (m *MEXC) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	var info domain.AccountInfo
	if err := m.client.Signed(ctx, http.MethodGet, "/api/v3/account", nil, &info); err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "failed to get mexc account")
	}
	return info, nil
}

func (m *MEXC) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	params := url.Values{"symbol": {symbol}}
	if err := m.client.Public(ctx, "/api/v3/ticker/price", params, &resp); err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get mexc price for %s", symbol)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("mexc API returned empty price for %s", symbol)
	}
	return parseDecimal("price", resp.Price)
}

func (m *MEXC) Ticker24hr(ctx context.Context, symbol string) (domain.Ticker24h, error) {
	var resp struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		Volume             string `json:"volume"`
		PriceChangePercent string `json:"priceChangePercent"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
	}
	params := url.Values{"symbol": {symbol}}
	if err := m.client.Public(ctx, "/api/v3/ticker/24hr", params, &resp); err != nil {
		return domain.Ticker24h{}, errors.Wrapf(err, "failed to get mexc 24h ticker for %s", symbol)
	}

	t := domain.Ticker24h{Symbol: symbol}
	var err error
	if t.LastPrice, err = parseDecimal("lastPrice", resp.LastPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.Volume, err = parseDecimal("volume", resp.Volume); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.PriceChangePercent, err = parseDecimal("priceChangePercent", resp.PriceChangePercent); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.HighPrice, err = parseDecimal("highPrice", resp.HighPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	if t.LowPrice, err = parseDecimal("lowPrice", resp.LowPrice); err != nil {
		return domain.Ticker24h{}, err
	}
	return t, nil
}

// Klines rows are [openTime, open, high, low, close, volume, closeTime, quoteVolume].
func (m *MEXC) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	var rows [][]any
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := m.client.Public(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from MEXC for %s", symbol)
	}

	result := make([]domain.Kline, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, errors.Errorf("malformed kline at index %d", i)
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, errors.Errorf("malformed kline open time at index %d", i)
		}
		k := domain.Kline{OpenTime: time.UnixMilli(int64(openTime)).UTC()}
		fields := []*decimal.Decimal{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
		for j, dst := range fields {
			raw, ok := row[j+1].(string)
			if !ok {
				return nil, errors.Errorf("malformed kline value at index %d", i)
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse kline at index %d", i)
			}
			*dst = v
		}
		result = append(result, k)
	}
	return result, nil
}

func (m *MEXC) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, quantity decimal.Decimal, clientOrderID string) (domain.OrderResult, error) {
	if err := validateOrder(side, quantity); err != nil {
		return domain.OrderResult{}, err
	}
	quantity = quantity.RoundFloor(4)

	params := url.Values{
		"symbol":   {symbol},
		"side":     {side.String()},
		"type":     {"MARKET"},
		"quantity": {quantity.String()},
	}
	if clientOrderID != "" {
		params.Set("newClientOrderId", clientOrderID)
	}

	var resp struct {
		OrderID     string `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		QuoteQty    string `json:"cummulativeQuoteQty"`
	}
	if err := m.client.Signed(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to place mexc %s order", side)
	}

	executed, err := parseDecimal("executedQty", resp.ExecutedQty)
	if err != nil {
		return domain.OrderResult{}, err
	}
	quoteQty, err := parseDecimal("cummulativeQuoteQty", resp.QuoteQty)
	if err != nil {
		return domain.OrderResult{}, err
	}
	m.l.Info("mexc market order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("quantity", quantity.String()),
		zap.String("order_id", resp.OrderID))

	return domain.OrderResult{OrderID: resp.OrderID, Status: resp.Status, ExecutedQty: executed, QuoteQty: quoteQty}, nil
}
