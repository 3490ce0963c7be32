package exchange

import (
	"context"
	"fmt"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// Bybit spot adapter over the v5 unified account.
type Bybit struct {
	client *bybit.Client
	l      *zap.Logger
}

func NewBybit(client *bybit.Client, l *zap.Logger) *Bybit {
	return &Bybit{client: client, l: l}
}

// AccountInfo reports the wallet balance of each coin as free funds.
func (b *Bybit) AccountInfo(context.Context) (domain.AccountInfo, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return domain.AccountInfo{}, errors.Wrap(err, "failed to get bybit wallet balance")
	}

	var info domain.AccountInfo
	if len(res.Result.List) == 0 {
		return info, nil
	}
	for _, coin := range res.Result.List[0].Coin {
		info.Balances = append(info.Balances, domain.RawBalance{
			Asset:  string(coin.Coin),
			Free:   coin.WalletBalance,
			Locked: "0",
		})
	}
	return info, nil
}

func (b *Bybit) TickerPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s := bybit.SymbolV5(symbol)
	result, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &s,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get bybit price for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit API returned empty prices for %s", symbol)
	}
	return parseDecimal("lastPrice", result.Result.Spot.List[0].LastPrice)
}

// Ticker24hr carries only the last price; range statistics stay zero.
func (b *Bybit) Ticker24hr(ctx context.Context, symbol string) (domain.Ticker24h, error) {
	price, err := b.TickerPrice(ctx, symbol)
	if err != nil {
		return domain.Ticker24h{}, err
	}
	return domain.Ticker24h{Symbol: symbol, LastPrice: price}, nil
}

func (b *Bybit) Klines(context.Context, string, string, int) ([]domain.Kline, error) {
	return nil, errors.Wrap(ErrUnsupported, "bybit klines")
}

func (b *Bybit) PlaceMarketOrder(_ context.Context, symbol string, side domain.Action, quantity decimal.Decimal, clientOrderID string) (domain.OrderResult, error) {
	if err := validateOrder(side, quantity); err != nil {
		return domain.OrderResult{}, err
	}
	quantity = quantity.RoundFloor(4)

	orderSide := bybit.SideBuy
	if side == domain.ActionSell {
		orderSide = bybit.SideSell
	}
	param := bybit.V5CreateOrderParam{
		Category:  "spot",
		Symbol:    bybit.SymbolV5(symbol),
		Side:      orderSide,
		OrderType: bybit.OrderTypeMarket,
		Qty:       quantity.String(),
	}
	if clientOrderID != "" {
		param.OrderLinkID = &clientOrderID
	}

	resp, err := b.client.V5().Order().CreateOrder(param)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "failed to create %s order", side)
	}

	b.l.Info("bybit market order placed",
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.String("quantity", quantity.String()),
		zap.String("order_id", resp.Result.OrderID))

	return domain.OrderResult{OrderID: resp.Result.OrderID, Status: "NEW"}, nil
}
