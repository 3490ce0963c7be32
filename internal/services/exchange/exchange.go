// Package exchange adapts spot exchange clients to a single interface.
package exchange

import (
	"context"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/clients"
	"github.com/vadiminshakov/qrlbot/internal/domain"
)

// ErrUnsupported is returned by adapters for calls the venue does not provide.
var ErrUnsupported = errors.New("exchange: operation not supported")

// Exchange spot market operations used by the jobs and the trader.
type Exchange interface {
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Ticker24hr(ctx context.Context, symbol string) (domain.Ticker24h, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Action, quantity decimal.Decimal, clientOrderID string) (domain.OrderResult, error)
}

// New picks the adapter matching the client type.
func New(client any, l *zap.Logger) (Exchange, error) {
	switch c := client.(type) {
	case *clients.MEXCClient:
		return NewMEXC(c, l), nil
	case *binance.Client:
		return NewBinance(c, l), nil
	case *bybit.Client:
		return NewBybit(c, l), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

func validateOrder(side domain.Action, quantity decimal.Decimal) error {
	if !side.IsTrade() {
		return errors.Errorf("invalid order side %q", side)
	}
	if !quantity.IsPositive() {
		return errors.Errorf("invalid order quantity %s", quantity)
	}
	return nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse %s", field)
	}
	return v, nil
}
