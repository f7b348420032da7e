package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/td-engine/model"
)

// MatchCollector exposes simulation metrics aggregated over every match the
// process hosts. It satisfies the match and registry recorder interfaces.
type MatchCollector struct {
	gatherer prometheus.Gatherer

	TickDuration  prometheus.Histogram
	Ticks         prometheus.Counter
	ActiveMatches prometheus.Gauge
	Entities      *prometheus.GaugeVec
	Kills         prometheus.Counter
	LivesLost     prometheus.Counter
	WavesStarted  prometheus.Counter
	WavesCleared  prometheus.Counter
	Rejections    *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
}

// NewMatchCollector registers match metrics against the provided registerer.
func NewMatchCollector(reg prometheus.Registerer) (*MatchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "td_tick_duration_seconds",
		Help:    "Time spent applying one simulation tick, excluding lock wait.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "td_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "td_ticks_total",
		Help: "Simulation ticks applied across all matches.",
	}), "td_ticks_total")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "td_active_matches",
		Help: "Matches currently held by the registry.",
	}), "td_active_matches")
	if err != nil {
		return nil, err
	}
	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "td_entities",
		Help: "Live players, towers and enemies across all matches.",
	}, []string{"kind"}), "td_entities")
	if err != nil {
		return nil, err
	}
	kills, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "td_enemies_killed_total",
		Help: "Enemies destroyed by towers.",
	}), "td_enemies_killed_total")
	if err != nil {
		return nil, err
	}
	lost, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "td_lives_lost_total",
		Help: "Lives lost to enemies reaching the exit.",
	}), "td_lives_lost_total")
	if err != nil {
		return nil, err
	}
	started, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "td_waves_started_total",
		Help: "Waves launched.",
	}), "td_waves_started_total")
	if err != nil {
		return nil, err
	}
	cleared, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "td_waves_cleared_total",
		Help: "Waves whose spawns were exhausted with no enemy left alive.",
	}), "td_waves_cleared_total")
	if err != nil {
		return nil, err
	}
	rejections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "td_command_rejections_total",
		Help: "Rejected match commands, labeled by operation and reason code.",
	}, []string{"op", "reason"}), "td_command_rejections_total")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "td_lifecycle_transitions_total",
		Help: "Match lifecycle transitions, labeled by target state.",
	}, []string{"to"}), "td_lifecycle_transitions_total")
	if err != nil {
		return nil, err
	}

	return &MatchCollector{
		gatherer:      gatherer,
		TickDuration:  tickHistogram,
		Ticks:         ticks,
		ActiveMatches: active,
		Entities:      entities,
		Kills:         kills,
		LivesLost:     lost,
		WavesStarted:  started,
		WavesCleared:  cleared,
		Rejections:    rejections,
		Transitions:   transitions,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MatchCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one applied tick.
func (c *MatchCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

// AddEntityCounts applies per-match deltas to the entity gauges.
func (c *MatchCollector) AddEntityCounts(players, towers, enemies int) {
	if c == nil {
		return
	}
	c.Entities.WithLabelValues("player").Add(float64(players))
	c.Entities.WithLabelValues("tower").Add(float64(towers))
	c.Entities.WithLabelValues("enemy").Add(float64(enemies))
}

// RecordKills counts destroyed enemies.
func (c *MatchCollector) RecordKills(n int) {
	if c == nil {
		return
	}
	c.Kills.Add(float64(n))
}

// RecordLivesLost counts lives lost.
func (c *MatchCollector) RecordLivesLost(n int) {
	if c == nil {
		return
	}
	c.LivesLost.Add(float64(n))
}

// RecordWaveStarted counts a launched wave.
func (c *MatchCollector) RecordWaveStarted() {
	if c == nil {
		return
	}
	c.WavesStarted.Inc()
}

// RecordWaveCleared counts a completed wave.
func (c *MatchCollector) RecordWaveCleared() {
	if c == nil {
		return
	}
	c.WavesCleared.Inc()
}

// RecordRejection counts a refused command.
func (c *MatchCollector) RecordRejection(op, reason string) {
	if c == nil {
		return
	}
	c.Rejections.WithLabelValues(op, reason).Inc()
}

// RecordLifecycle counts a lifecycle transition.
func (c *MatchCollector) RecordLifecycle(_, to model.Lifecycle) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(string(to)).Inc()
}

// SetActiveMatches updates the registry size gauge.
func (c *MatchCollector) SetActiveMatches(n int) {
	if c == nil {
		return
	}
	c.ActiveMatches.Set(float64(n))
}
