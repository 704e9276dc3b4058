package account

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/decider/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := Open(store.NewMemory(), zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	return l
}

func TestCanOpenDefaults(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	ok, reason := l.CanOpen()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestMaxConcurrentPositions(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	for i := 0; i < DefaultMaxConcurrent; i++ {
		ok, _ := l.CanOpen()
		assert.True(t, ok)
		assert.NoError(t, l.OnPositionOpen())
	}

	ok, reason := l.CanOpen()
	assert.False(t, ok)
	assert.Equal(t, ReasonMaxConcurrent, reason)

	assert.NoError(t, l.OnPositionClose(5))
	ok, _ = l.CanOpen()
	assert.True(t, ok)
}

func TestDailyLossCap(t *testing.T) {
	t.Parallel()

	// -3% of 10000 is -300; a 301 loss trips the cap, 299 does not.
	l := newTestLedger(t)
	assert.NoError(t, l.OnPositionOpen())
	assert.NoError(t, l.OnPositionClose(-301))

	ok, reason := l.CanOpen()
	assert.False(t, ok)
	assert.Equal(t, ReasonDailyLossCap, reason)

	l2 := newTestLedger(t)
	assert.NoError(t, l2.OnPositionOpen())
	assert.NoError(t, l2.OnPositionClose(-299))

	ok, reason = l2.CanOpen()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestDayRolloverResetsDailyPnL(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	day1 := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return day1 })

	assert.NoError(t, l.OnPositionOpen())
	assert.NoError(t, l.OnPositionClose(-500))

	ok, reason := l.CanOpen()
	assert.False(t, ok)
	assert.Equal(t, ReasonDailyLossCap, reason)

	// Cross midnight: the cap must be evaluated against the new day's
	// accumulator, not yesterday's loss.
	day2 := day1.Add(2 * time.Hour)
	l.SetClock(func() time.Time { return day2 })

	ok, _ = l.CanOpen()
	assert.True(t, ok)
	assert.Equal(t, 0.0, l.RealizedPnLToday())
	assert.InDelta(t, 9500, l.Equity(), 1e-9)
}

func TestCloseFloorsOpenPositionsAtZero(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	assert.NoError(t, l.OnPositionClose(10))
	assert.Equal(t, 0, l.OpenPositions())
	assert.InDelta(t, 10_010, l.Equity(), 1e-9)
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()

	l, err := Open(repo, zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	assert.NoError(t, l.OnPositionOpen())
	assert.NoError(t, l.OnPositionOpen())
	assert.NoError(t, l.OnPositionClose(-42))

	reopened, err := Open(repo, zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	assert.Equal(t, 1, reopened.OpenPositions())
	assert.InDelta(t, 9958, reopened.Equity(), 1e-9)
	assert.InDelta(t, -42, reopened.TotalPnL(), 1e-9)
}
