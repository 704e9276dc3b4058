package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
)

// Fetcher retrieves klines for a symbol over a time window.
type Fetcher interface {
	Fetch(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error)
}

// BinanceFetcher pulls candles from the Binance public klines endpoint.
// No API key is required for market data.
type BinanceFetcher struct {
	client *binance.Client
	limit  int
}

func NewBinanceFetcher() *BinanceFetcher {
	return &BinanceFetcher{
		client: binance.NewClient("", ""),
		limit:  1000,
	}
}

func (f *BinanceFetcher) Fetch(ctx context.Context, symbol, interval string, start, end time.Time) ([]Bar, error) {
	// Binance wants uppercase with no punctuation, e.g. BTCUSDT not BTC-USDT.
	sym := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))

	svc := f.client.NewKlinesService().
		Symbol(sym).
		Interval(interval).
		Limit(f.limit)

	if !start.IsZero() {
		svc = svc.StartTime(start.UTC().UnixMilli())
	}
	if !end.IsZero() {
		svc = svc.EndTime(end.UTC().UnixMilli())
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", sym, interval, err)
	}

	bars := make([]Bar, 0, len(klines))
	for _, k := range klines {
		b, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s: %w", sym, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseKline(k *binance.Kline) (Bar, error) {
	var (
		b   Bar
		err error
	)
	b.Time = time.UnixMilli(k.OpenTime).UTC()

	for _, fld := range []struct {
		dst *float64
		src string
	}{
		{&b.Open, k.Open},
		{&b.High, k.High},
		{&b.Low, k.Low},
		{&b.Close, k.Close},
		{&b.Volume, k.Volume},
	} {
		*fld.dst, err = strconv.ParseFloat(fld.src, 64)
		if err != nil {
			return Bar{}, err
		}
	}
	return b, nil
}
