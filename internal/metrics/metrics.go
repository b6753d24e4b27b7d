// Package metrics exposes the simulation's Prometheus instrumentation.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mossfield/villagesim/internal/engine"
)

// Collector bundles the simulation metrics and wires them to a simulation's
// tick and event hooks.
type Collector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	Ticks        prometheus.Counter
	Events       *prometheus.CounterVec

	Population prometheus.Gauge
	Buildings  prometheus.Gauge
	GameDay    prometheus.Gauge
	ShopIncome prometheus.Gauge
}

// NewCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "villagesim_tick_duration_seconds",
			Help:    "Wall time spent advancing one simulation tick.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "villagesim_ticks_total",
			Help: "Total simulation ticks processed.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "villagesim_events_total",
			Help: "Simulation events emitted, labeled by kind.",
		}, []string{"kind"}),
		Population: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagesim_population",
			Help: "Current villager count.",
		}),
		Buildings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagesim_buildings",
			Help: "Current building count.",
		}),
		GameDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagesim_game_day",
			Help: "Current in-game day number.",
		}),
		ShopIncome: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "villagesim_shop_income_total",
			Help: "Accumulated income across all shops.",
		}),
	}

	for name, coll := range map[string]prometheus.Collector{
		"villagesim_tick_duration_seconds": c.TickDuration,
		"villagesim_ticks_total":           c.Ticks,
		"villagesim_events_total":          c.Events,
		"villagesim_population":            c.Population,
		"villagesim_buildings":             c.Buildings,
		"villagesim_game_day":              c.GameDay,
		"villagesim_shop_income_total":     c.ShopIncome,
	} {
		if err := reg.Register(coll); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return c, nil
}

// Attach wires the collector to a scheduler's tick hook and the simulation's
// event stream.
func (c *Collector) Attach(sc *engine.Scheduler) {
	sim := sc.Sim
	prev := sc.OnTick
	sc.OnTick = func(tick uint64, elapsed time.Duration) {
		if prev != nil {
			prev(tick, elapsed)
		}
		c.Ticks.Inc()
		c.TickDuration.Observe(elapsed.Seconds())

		stats := sim.StatsView()
		c.Population.Set(float64(stats.Population))
		c.Buildings.Set(float64(stats.Buildings))
		c.GameDay.Set(float64(stats.Day))
		c.ShopIncome.Set(stats.ShopIncome)
	}
	sim.Subscribe(func(e engine.Event) {
		c.Events.WithLabelValues(string(e.Kind)).Inc()
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
