// Package server exposes the running engine over HTTP: health and status
// probes, a manual cycle trigger and the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/engine"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/metrics"
)

type Server struct {
	engine    *engine.Engine
	ledger    *account.Ledger
	positions *lifecycle.Manager
	metrics   *metrics.Metrics
	symbols   []string
	log       zerolog.Logger

	http *http.Server
}

func New(addr string, eng *engine.Engine, ledger *account.Ledger,
	positions *lifecycle.Manager, m *metrics.Metrics, symbols []string, log zerolog.Logger) *Server {

	s := &Server{
		engine:    eng,
		ledger:    ledger,
		positions: positions,
		metrics:   m,
		symbols:   symbols,
		log:       log.With().Str("component", "server").Logger(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router; split out so tests can drive it with httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/run", s.handleRun)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe blocks until the context is canceled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http listening")
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Time      time.Time                     `json:"time"`
	Account   account.Snapshot              `json:"account"`
	Symbols   []string                      `json:"symbols"`
	Positions map[string]lifecycle.Position `json:"positions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Time:      time.Now().UTC(),
		Account:   s.ledger.Snapshot(),
		Symbols:   s.symbols,
		Positions: s.positions.Positions(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Outcomes []outcomeSummary `json:"outcomes"`
}

type outcomeSummary struct {
	Symbol  string `json:"symbol"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	State   string `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	report := s.engine.RunCycle(r.Context(), s.symbols)

	resp := runResponse{Started: report.Started, Finished: report.Finished}
	for _, o := range report.Outcomes {
		sum := outcomeSummary{Symbol: o.Symbol, Skipped: o.Skipped, Reason: o.Reason}
		if o.Event != nil {
			sum.State = o.Event.State
		}
		if o.Err != nil {
			sum.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, sum)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// Headers are already out; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(v)
}
