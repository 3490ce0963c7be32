package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/clients"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		client  any
		want    any
		wantErr bool
	}{
		{name: "mexc", client: clients.NewMEXCClient("k", "s"), want: &MEXC{}},
		{name: "binance", client: clients.NewBinanceClient("k", "s"), want: &Binance{}},
		{name: "bybit", client: clients.NewBybitClient("k", "s"), want: &Bybit{}},
		{name: "unknown", client: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := New(tt.client, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, ex)
		})
	}
}

func TestBinance_TickerPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" || r.URL.Query().Get("symbol") != "QRLUSDT" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"QRLUSDT","price":"0.4215"}]`))
	}))
	defer srv.Close()

	ex := NewBinance(clients.NewBinanceClientWithURL(srv.URL+"/", "", ""), zap.NewNop())

	price, err := ex.TickerPrice(context.Background(), "QRLUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.4215")))

	_, err = ex.TickerPrice(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}
