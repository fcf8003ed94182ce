package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ftchann/uniswap-vault/lib/config"
	ent "github.com/ftchann/uniswap-vault/lib/transaction"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	base := zerolog.New(os.Stdout).With().Timestamp().Logger()
	lg := base.With().Str("Module", "Main").Logger()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if err := run(path, base); err != nil {
		lg.Fatal().Err(err).Msg("Simulation failed")
	}
}

// run replays the configured history and writes the report. With both a
// metrics address and a keeper schedule it then keeps the keeper running
// until interrupted.
func run(path string, base zerolog.Logger) error {
	lg := base.With().Str("Module", "Main").Logger()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	transactions, err := ent.Load(cfg.Simulation.DataPath)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	lg.Info().Int("Transactions", len(transactions)).Str("Path", cfg.Simulation.DataPath).Msg("Start")

	sim, err := newSimulation(cfg, transactions, base)
	if err != nil {
		return fmt.Errorf("wiring simulation: %w", err)
	}
	defer sim.Close()

	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(sim.Metrics.Registry(), promhttp.HandlerOpts{})}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer server.Close()
		lg.Info().Str("Addr", cfg.MetricsAddr).Msg("Serving metrics")
	}

	report, err := sim.Exec.Run()
	if err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	out := os.Stdout
	if cfg.Simulation.ResultPath != "" {
		f, err := os.Create(cfg.Simulation.ResultPath)
		if err != nil {
			return fmt.Errorf("creating result file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteJSON(out); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	lg.Info().
		Int("Rebalances", report.Rebalances).
		Int("Skipped", report.Skipped).
		Int("Failed", report.Failed).
		Str("Withdrawn0", report.Withdrawn0).
		Str("Withdrawn1", report.Withdrawn1).
		Msg("Done")

	if cfg.Keeper.Schedule == "" || cfg.MetricsAddr == "" {
		return nil
	}
	if _, err := sim.Keeper.Schedule(cfg.Keeper.Schedule); err != nil {
		return fmt.Errorf("scheduling keeper: %w", err)
	}
	sim.Keeper.Start()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	<-sim.Keeper.Stop().Done()
	return nil
}
