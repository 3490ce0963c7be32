// Package indicators provides technical analysis indicators (SMA, EMA, RSI).
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// Summary latest indicator values for a close series.
type Summary struct {
	EMAShort decimal.Decimal `json:"ema_short"`
	EMALong  decimal.Decimal `json:"ema_long"`
	RSI      decimal.Decimal `json:"rsi"`
}

// SMA returns the arithmetic mean of the first period values.
// Series are most-recent-first, so this is the mean of the latest period prices.
func SMA(series []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, fmt.Errorf("invalid period %d", period)
	}
	if len(series) < period {
		return decimal.Zero, fmt.Errorf("not enough data points: need %d, got %d", period, len(series))
	}

	sum := decimal.Zero
	for _, v := range series[:period] {
		sum = sum.Add(v)
	}

	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
// Closes are ordered oldest first.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
// Closes are ordered oldest first.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	rsi := momentum.NewRsiWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := rsi.Compute(inputChan)
	rsiFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(rsiFloat), nil
}

// Summarize computes the latest EMA and RSI values from a most-recent-first series.
func Summarize(series []decimal.Decimal, shortPeriod, longPeriod, rsiPeriod int) (Summary, error) {
	closes := reverse(series)

	emaShort, err := CalculateEMA(closes, shortPeriod)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to calculate short EMA: %w", err)
	}
	emaLong, err := CalculateEMA(closes, longPeriod)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to calculate long EMA: %w", err)
	}
	rsi, err := CalculateRSI(closes, rsiPeriod)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to calculate RSI: %w", err)
	}
	if len(emaShort) == 0 || len(emaLong) == 0 || len(rsi) == 0 {
		return Summary{}, fmt.Errorf("indicator warmup not complete")
	}

	return Summary{
		EMAShort: emaShort[len(emaShort)-1],
		EMALong:  emaLong[len(emaLong)-1],
		RSI:      rsi[len(rsi)-1],
	}, nil
}

func reverse(series []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(series))
	for i, v := range series {
		out[len(series)-1-i] = v
	}
	return out
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
