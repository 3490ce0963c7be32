package clients

import (
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
)

// NewBinanceClient spot client. Empty keys give a client limited to public market data.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

// NewBinanceClientWithURL points the client at a custom host, e.g. the spot testnet.
func NewBinanceClientWithURL(baseURL, apiKey, apiSecret string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	client.BaseURL = strings.TrimSuffix(baseURL, "/")
	return client
}

// NewBybitClient V5 client; auth is attached only when both keys are set.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey == "" || apiSecret == "" {
		return client
	}
	return client.WithAuth(apiKey, apiSecret)
}
