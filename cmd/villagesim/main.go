// Command villagesim runs a headless village simulation with an HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mossfield/villagesim/internal/api"
	"github.com/mossfield/villagesim/internal/config"
	"github.com/mossfield/villagesim/internal/engine"
	"github.com/mossfield/villagesim/internal/journal"
	"github.com/mossfield/villagesim/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults apply when empty)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	if token := os.Getenv("VILLAGESIM_ADMIN_TOKEN"); token != "" {
		cfg.API.AdminToken = token
	}
	if cfg.API.AdminToken == "" {
		slog.Warn("no admin token set; POST endpoints are disabled")
	}

	sim, err := engine.NewSimulation(cfg)
	if err != nil {
		slog.Error("world generation failed", "error", err)
		os.Exit(1)
	}

	// ── Journal (diagnostics only, never read back into the world) ───
	var jnl *journal.Journal
	if cfg.Journal.Path != "" {
		if dir := filepath.Dir(cfg.Journal.Path); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			slog.Error("journal open failed", "path", cfg.Journal.Path, "error", err)
			os.Exit(1)
		}
		defer jnl.Close()
		jnl.Attach(sim)
		slog.Info("journal opened", "path", cfg.Journal.Path)

		// Roll completed days out of the live table.
		if cfg.Journal.ArchiveDir != "" {
			os.MkdirAll(cfg.Journal.ArchiveDir, 0755)
			sim.Subscribe(func(e engine.Event) {
				if e.Kind != engine.EventDayChanged || e.Day < 1 {
					return
				}
				path, err := jnl.ArchiveDay(cfg.Journal.ArchiveDir, e.Day-1)
				if err != nil {
					slog.Warn("day archive failed", "day", e.Day-1, "error", err)
				} else if path != "" {
					slog.Info("day archived", "day", e.Day-1, "path", path)
				}
			})
		}
	} else {
		slog.Info("journal disabled")
	}

	sched := engine.NewScheduler(sim)

	// ── Metrics ──────────────────────────────────────────────────────
	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}
	collector.Attach(sched)

	// ── HTTP API ─────────────────────────────────────────────────────
	server := &api.Server{
		Sim:        sim,
		Journal:    jnl,
		Metrics:    collector.Handler(),
		Addr:       cfg.API.Addr,
		AdminToken: cfg.API.AdminToken,
	}
	server.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := sim.StatsView()
	fmt.Printf("\nVillage is alive: %d villagers, %d buildings.\n", stats.Population, stats.Buildings)
	fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.API.Addr)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	sched.Run(ctx)

	fmt.Println("Simulation stopped.")
}
