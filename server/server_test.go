package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/engine"
	"github.com/rustyeddy/decider/gate"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/metrics"
	"github.com/rustyeddy/decider/signals"
	"github.com/rustyeddy/decider/store"
)

type staticData struct {
	series map[string]*market.Series
}

func (d *staticData) Update(_ context.Context, symbol string) (*market.Series, error) {
	return d.series[symbol], nil
}

func newTestServer(t *testing.T) (*Server, *staticData) {
	t.Helper()

	ledger, err := account.Open(store.NewMemory(), zerolog.Nop(), 10_000)
	assert.NoError(t, err)
	g, err := gate.Open(store.NewMemory(), zerolog.Nop())
	assert.NoError(t, err)
	sigs, err := signals.Open(store.NewMemory(), zerolog.Nop(), 6*time.Hour)
	assert.NoError(t, err)
	mgr, err := lifecycle.Open(store.NewMemory(), ledger, zerolog.Nop())
	assert.NoError(t, err)

	m := metrics.New()
	data := &staticData{series: map[string]*market.Series{}}

	eng, err := engine.New(engine.Options{
		Data:      data,
		Gate:      g,
		Signals:   sigs,
		Ledger:    ledger,
		Positions: mgr,
		Enrich:    func(*market.Series) {},
		Metrics:   m,
		Log:       zerolog.Nop(),
	})
	assert.NoError(t, err)

	return New(":0", eng, ledger, mgr, m, []string{"BTCUSDT"}, zerolog.Nop()), data
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusReportsAccountAndSymbols(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Account struct {
			Equity float64 `json:"equity"`
		} `json:"account"`
		Symbols []string `json:"symbols"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10_000.0, resp.Account.Equity)
	assert.Equal(t, []string{"BTCUSDT"}, resp.Symbols)
}

func TestRunTriggersCycle(t *testing.T) {
	t.Parallel()

	srv, data := newTestServer(t)
	stop := 95.0
	data.series["BTCUSDT"] = &market.Series{Symbol: "BTCUSDT", Bars: []market.Bar{{
		Time:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:        100, High: 100, Low: 100, Close: 100, Volume: 1,
		FinalSignal: 1,
		StopLoss:    &stop,
	}}}

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Outcomes []struct {
			Symbol string `json:"symbol"`
			State  string `json:"state"`
		} `json:"outcomes"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if assert.Len(t, resp.Outcomes, 1) {
		assert.Equal(t, "BTCUSDT", resp.Outcomes[0].Symbol)
		assert.Equal(t, lifecycle.EventOpen, resp.Outcomes[0].State)
	}

	// GET on /run is not allowed.
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	srv, data := newTestServer(t)
	data.series["BTCUSDT"] = &market.Series{Symbol: "BTCUSDT", Bars: []market.Bar{{
		Time: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open: 100, High: 100, Low: 100, Close: 100, Volume: 1,
	}}}

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "decider_cycles_total 1"))
	assert.True(t, strings.Contains(rec.Body.String(), "decider_equity 10000"))
}
