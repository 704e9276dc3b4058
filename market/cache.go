package market

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/store"
)

// DefaultLookback is the rolling window maintained per symbol, in bars.
const DefaultLookback = 800

var intervalSteps = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Cache maintains a clean, gap-free rolling candle dataset per symbol,
// persisted as one JSON document each and refreshed incrementally from the
// fetcher on every cycle.
type Cache struct {
	dir      string
	interval string
	step     time.Duration
	lookback int
	fetcher  Fetcher
	now      func() time.Time
	log      zerolog.Logger
}

func NewCache(dir, interval string, lookback int, f Fetcher, log zerolog.Logger) (*Cache, error) {
	step, ok := intervalSteps[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Cache{
		dir:      dir,
		interval: interval,
		step:     step,
		lookback: lookback,
		fetcher:  f,
		now:      time.Now,
		log:      log,
	}, nil
}

// SetClock overrides the wall clock, for tests.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func (c *Cache) repo(symbol string) store.Repository {
	name := fmt.Sprintf("%s_%s.json", symbol, c.interval)
	return store.NewFile(filepath.Join(c.dir, name), c.log)
}

// Update brings the symbol's dataset up to the current (floored) bar and
// returns exactly lookback bars, validated and gap-free.
func (c *Cache) Update(ctx context.Context, symbol string) (*Series, error) {
	repo := c.repo(symbol)

	series := &Series{Symbol: symbol}
	if _, err := repo.Load(series); err != nil {
		return nil, err
	}
	series.Symbol = symbol
	sanitize(series)

	nowBar := c.now().UTC().Truncate(c.step)
	startRequired := nowBar.Add(-time.Duration(c.lookback) * c.step)

	fetchStart := startRequired
	if !series.Empty() {
		fetchStart = series.LastTime().Add(c.step)
	}

	if !fetchStart.After(nowBar) {
		fresh, err := c.fetcher.Fetch(ctx, symbol, c.interval, fetchStart, nowBar)
		if err != nil {
			return nil, err
		}
		series.Bars = append(series.Bars, fresh...)
		sanitize(series)
	}

	if series.Empty() {
		return nil, fmt.Errorf("%s: no data available after fetch", symbol)
	}

	// Enforce the exact rolling window.
	trimBefore(series, startRequired)
	if n := len(series.Bars); n > c.lookback {
		series.Bars = series.Bars[n-c.lookback:]
	}

	if err := c.checkGaps(series); err != nil {
		return nil, err
	}
	if err := Validate(series); err != nil {
		return nil, err
	}

	if err := repo.Save(series); err != nil {
		return nil, err
	}

	c.log.Debug().Str("symbol", symbol).Int("bars", series.Len()).
		Time("first", series.Bars[0].Time).Time("last", series.LastTime()).
		Msg("dataset updated")

	return series, nil
}

// sanitize drops duplicate timestamps (keeping the newest) and restores
// time ordering after an append.
func sanitize(s *Series) {
	if len(s.Bars) == 0 {
		return
	}
	sort.SliceStable(s.Bars, func(i, j int) bool {
		return s.Bars[i].Time.Before(s.Bars[j].Time)
	})
	out := s.Bars[:0]
	for _, b := range s.Bars {
		if len(out) > 0 && out[len(out)-1].Time.Equal(b.Time) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	s.Bars = out
}

func trimBefore(s *Series, cutoff time.Time) {
	i := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Time.Before(cutoff)
	})
	s.Bars = s.Bars[i:]
}

// checkGaps is a hard failure: acting on a dataset with holes produces
// signals computed over a discontinuous window.
func (c *Cache) checkGaps(s *Series) error {
	for i := 1; i < len(s.Bars); i++ {
		want := s.Bars[i-1].Time.Add(c.step)
		if !s.Bars[i].Time.Equal(want) {
			return fmt.Errorf("%s: data gap detected, expected %s got %s",
				s.Symbol, want.Format(time.RFC3339), s.Bars[i].Time.Format(time.RFC3339))
		}
	}
	return nil
}
