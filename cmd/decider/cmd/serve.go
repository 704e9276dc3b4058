package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/decider/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine on a cron schedule with an HTTP status surface",
	Long: `Start the scheduler and HTTP server. Decision cycles run on the
configured cron schedule; /health, /status, /run and /metrics are
served over HTTP until SIGINT or SIGTERM.

Example:
  decider serve -f decider.yaml`,
	RunE: runServe,
}

var serveConfigPath string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "decider.yaml", "path to config file (YAML or JSON)")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newApp(serveConfigPath)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := cron.New()
	_, err = sched.AddFunc(app.cfg.Server.Schedule, func() {
		cycleCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		app.engine.RunCycle(cycleCtx, app.cfg.Data.Symbols)
	})
	if err != nil {
		return fmt.Errorf("cron schedule %q: %w", app.cfg.Server.Schedule, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	app.log.Info().Str("schedule", app.cfg.Server.Schedule).
		Strs("symbols", app.cfg.Data.Symbols).Msg("scheduler started")

	srv := server.New(app.cfg.Server.Addr, app.engine, app.ledger,
		app.manager, app.metrics, app.cfg.Data.Symbols, app.log)

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
