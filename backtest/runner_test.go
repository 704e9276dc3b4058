package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/decider/indicators"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/market"
)

func flatBars(start time.Time, n int, close float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   close,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
			Volume: 10,
		}
	}
	return bars
}

// stampSignals writes a long entry with a stop at the given bar index and
// leaves the indicator pass out of the picture entirely.
func stampSignals(entries map[int]float64) func(*market.Series) {
	return func(s *market.Series) {
		for i, stop := range entries {
			st := stop
			s.Bars[i].FinalSignal = 1
			s.Bars[i].StopLoss = &st
		}
	}
}

func TestRunEmptySeries(t *testing.T) {
	t.Parallel()

	_, err := Run(&market.Series{Symbol: "BTCUSDT"}, Options{Log: zerolog.Nop()})
	require.Error(t, err)
}

func TestRunNoSignalsNoTrades(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := &market.Series{Symbol: "BTCUSDT", Bars: flatBars(start, 100, 100)}

	// A confidence floor above the scale suppresses every signal.
	res, err := Run(series, Options{
		Signal: indicators.Config{ConfThreshold: 101},
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Trades)
	assert.Empty(t, res.Events)
	assert.Equal(t, res.StartEquity, res.EndEquity)
	assert.Equal(t, 100, res.Bars)
}

func TestRunRoundTripViaExpiry(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(start, 100, 100)
	// Price drifts up after the entry so neither stop nor reversal fires;
	// the expiry closes it 48 bars later.
	for i := 10; i < 100; i++ {
		px := 100 + 0.1*float64(i-9)
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = px, px+0.5, px-0.5, px
	}
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	res, err := Run(series, Options{
		Enrich: stampSignals(map[int]float64{10: 95}),
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.Wins)
	assert.Greater(t, res.NetPnL, 0.0)

	require.Len(t, res.Events, 2)
	assert.Equal(t, lifecycle.EventOpen, res.Events[0].State)
	assert.Equal(t, lifecycle.EventClosed, res.Events[1].State)
	assert.Equal(t, lifecycle.ExitTimeExpiry, res.Events[1].Reason)
	assert.Equal(t, bars[58].Time, res.Events[1].Timestamp)
}

func TestRunStopLossCountsAsLoss(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(start, 30, 100)
	// Bar 11 closes through the stop.
	bars[11].Open, bars[11].High, bars[11].Low, bars[11].Close = 94, 94.5, 93.5, 94
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	res, err := Run(series, Options{
		Enrich: stampSignals(map[int]float64{10: 95}),
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Equal(t, 1, res.Trades)
	assert.Equal(t, 1, res.Losses)
	assert.InDelta(t, -6.0, res.NetPnL, 1e-9)
	assert.Greater(t, res.MaxDrawdownPct, 0.0)
	assert.Equal(t, lifecycle.ExitStop, res.Events[1].Reason)
}

func TestRunCooldownSuppressesReentry(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(start, 30, 100)
	bars[11].Open, bars[11].High, bars[11].Low, bars[11].Close = 94, 94.5, 93.5, 94
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	// Second signal lands three bars after the first, inside the 6h
	// cooldown window, and must not open.
	res, err := Run(series, Options{
		Enrich: stampSignals(map[int]float64{10: 95, 13: 90}),
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Trades)
	require.Len(t, res.Events, 2)
}

func TestRunMarksOpenPositionToLastClose(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	// Only 20 bars after entry, so neither stop nor expiry fires; the
	// position is still live and marked against the last close.
	bars := flatBars(start, 30, 100)
	for i := 10; i < 30; i++ {
		px := 100 + 0.2*float64(i-9)
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = px, px+0.5, px-0.5, px
	}
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	res, err := Run(series, Options{
		Enrich: stampSignals(map[int]float64{10: 95}),
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Trades)
	require.NotNil(t, res.OpenAtEnd)
	// Entry at bar 10 close 100.2, last close 104.0.
	assert.InDelta(t, 3.8, res.Unrealized, 1e-9)
	assert.InDelta(t, res.StartEquity+3.8, res.EndEquity, 1e-9)
}

func TestRunFeesReduceNetPnL(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(start, 30, 100)
	bars[11].Open, bars[11].High, bars[11].Low, bars[11].Close = 94, 94.5, 93.5, 94
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	res, err := Run(series, Options{
		Enrich:  stampSignals(map[int]float64{10: 95}),
		FeeRate: 0.001,
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)

	// Entry 100, exit 94: fee = 0.001*(100+94).
	assert.InDelta(t, 0.194, res.Fees, 1e-9)
	assert.InDelta(t, -6.0-0.194, res.NetPnL, 1e-9)
}

func TestPrint(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(start, 30, 100)
	bars[11].Close = 94
	bars[11].Low = 93.5
	series := &market.Series{Symbol: "BTCUSDT", Bars: bars}

	res, err := Run(series, Options{
		Enrich: stampSignals(map[int]float64{10: 95}),
		Log:    zerolog.Nop(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Symbol:        BTCUSDT")
	assert.Contains(t, out, "Trades:        1")
	assert.Contains(t, out, "CLOSED")
}
