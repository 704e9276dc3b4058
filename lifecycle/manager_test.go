package lifecycle

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/store"
)

func ptr(v float64) *float64 { return &v }

func newTestManager(t *testing.T) (*Manager, *account.Ledger) {
	t.Helper()

	ledger, err := account.Open(store.NewMemory(), zerolog.Nop(), 10_000)
	assert.NoError(t, err)

	m, err := Open(store.NewMemory(), ledger, zerolog.Nop())
	assert.NoError(t, err)
	return m, ledger
}

func signalBar(ts time.Time, close float64, signal int, stop *float64) market.Bar {
	return market.Bar{
		Time:        ts,
		Close:       close,
		FinalSignal: signal,
		StopLoss:    stop,
	}
}

func TestFlatBarNoAction(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev, err := m.Update(signalBar(ts, 100, 0, nil), "TESTUSDT")
	assert.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, 0, m.Count())
}

func TestOpenThenStopRoundTrip(t *testing.T) {
	t.Parallel()

	m, ledger := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev, err := m.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, EventOpen, ev.State)
		assert.Equal(t, 100.0, ev.Position.EntryPrice)
		assert.Equal(t, 1, ev.Position.Direction)
	}
	assert.Equal(t, 1, ledger.OpenPositions())

	// Price falls through the stop one hour later.
	ev, err = m.Update(signalBar(t0.Add(time.Hour), 90, 0, nil), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, EventClosed, ev.State)
		assert.Equal(t, ExitStop, ev.Reason)
		assert.Equal(t, ExitStop, ev.Position.Exit.ExitReason)
		assert.InDelta(t, -10.0, ev.Position.Exit.PnL, 1e-9)
	}

	_, open := m.Get("TESTUSDT")
	assert.False(t, open)
	assert.Equal(t, 0, ledger.OpenPositions())
	assert.InDelta(t, 9990, ledger.Equity(), 1e-9)
}

func TestOppositeSignalBeatsTimeExpiryButNotStop(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)

	// Stop not crossed, opposite signal present → OPPOSITE_SIGNAL.
	ev, err := m.Update(signalBar(t0.Add(time.Hour), 98, -1, nil), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, ExitOppositeSignal, ev.Reason)
		assert.InDelta(t, -2.0, ev.Position.Exit.PnL, 1e-9)
	}

	// Stop crossed AND opposite signal → STOP wins.
	m2, _ := newTestManager(t)
	_, err = m2.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)

	ev, err = m2.Update(signalBar(t0.Add(time.Hour), 94, -1, nil), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, ExitStop, ev.Reason)
	}
}

func TestTimeExpiry(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)

	// No stop breach, no opposite signal, but 48h in the market.
	ev, err := m.Update(signalBar(t0.Add(48*time.Hour), 101, 0, nil), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, EventClosed, ev.State)
		assert.Equal(t, ExitTimeExpiry, ev.Reason)
		assert.InDelta(t, 1.0, ev.Position.Exit.PnL, 1e-9)
	}
}

func TestShortPositionExits(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Update(signalBar(t0, 100, -1, ptr(105.0)), "TESTUSDT")
	assert.NoError(t, err)

	// Short stop is above entry; price rising through it exits.
	ev, err := m.Update(signalBar(t0.Add(time.Hour), 106, 0, nil), "TESTUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, ExitStop, ev.Reason)
		assert.InDelta(t, -6.0, ev.Position.Exit.PnL, 1e-9)
	}
}

func TestBlockedWhenLedgerDenies(t *testing.T) {
	t.Parallel()

	m, ledger := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, sym := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		ev, err := m.Update(signalBar(t0.Add(time.Duration(i)*time.Minute), 100, 1, ptr(95.0)), sym)
		assert.NoError(t, err)
		assert.Equal(t, EventOpen, ev.State)
	}

	ev, err := m.Update(signalBar(t0, 100, 1, ptr(95.0)), "DUSDT")
	assert.NoError(t, err)
	if assert.NotNil(t, ev) {
		assert.Equal(t, EventBlocked, ev.State)
		assert.Equal(t, account.ReasonMaxConcurrent, ev.Reason)
		assert.Nil(t, ev.Position)
	}

	// A blocked entry mutates nothing.
	_, open := m.Get("DUSDT")
	assert.False(t, open)
	assert.Equal(t, 3, ledger.OpenPositions())
}

func TestNoReopenInSameCycle(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := m.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)

	// This bar both closes the long (stop) and carries a short signal.
	// Only the close happens; the short must wait for a later bar.
	ev, err := m.Update(signalBar(t0.Add(time.Hour), 94, -1, ptr(99.0)), "TESTUSDT")
	assert.NoError(t, err)
	assert.Equal(t, EventClosed, ev.State)
	assert.Equal(t, 0, m.Count())

	ev, err = m.Update(signalBar(t0.Add(2*time.Hour), 94, -1, ptr(99.0)), "TESTUSDT")
	assert.NoError(t, err)
	assert.Equal(t, EventOpen, ev.State)
	assert.Equal(t, -1, ev.Position.Direction)
}

func TestLedgerCountMatchesLiveMapInvariant(t *testing.T) {
	t.Parallel()

	m, ledger := newTestManager(t)
	ledger.MaxConcurrent = 100
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	symbols := []string{"A", "B", "C", "D", "E"}
	for i, sym := range symbols {
		_, err := m.Update(signalBar(t0.Add(time.Duration(i)*time.Minute), 100, 1, ptr(95.0)), sym)
		assert.NoError(t, err)
		assert.Equal(t, m.Count(), ledger.OpenPositions())
	}

	// Close three of five via stop breach.
	for i, sym := range symbols[:3] {
		_, err := m.Update(signalBar(t0.Add(time.Duration(i+10)*time.Minute), 90, 0, nil), sym)
		assert.NoError(t, err)
		assert.Equal(t, m.Count(), ledger.OpenPositions())
	}

	assert.Equal(t, 2, m.Count())
	assert.Equal(t, 2, ledger.OpenPositions())
}

func TestPositionsPersistAcrossReopen(t *testing.T) {
	t.Parallel()

	posRepo := store.NewMemory()
	ledgerRepo := store.NewMemory()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ledger, err := account.Open(ledgerRepo, zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	m, err := Open(posRepo, ledger, zerolog.Nop())
	assert.NoError(t, err)

	_, err = m.Update(signalBar(t0, 100, 1, ptr(95.0)), "TESTUSDT")
	assert.NoError(t, err)

	// Simulate a restart: both documents reload from their repos.
	ledger2, err := account.Open(ledgerRepo, zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	m2, err := Open(posRepo, ledger2, zerolog.Nop())
	assert.NoError(t, err)

	pos, open := m2.Get("TESTUSDT")
	assert.True(t, open)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 1, ledger2.OpenPositions())

	ev, err := m2.Update(signalBar(t0.Add(time.Hour), 90, 0, nil), "TESTUSDT")
	assert.NoError(t, err)
	assert.Equal(t, EventClosed, ev.State)
	assert.Equal(t, 0, ledger2.OpenPositions())
}
