package keeper

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	stageCheckUpkeep   = "check_upkeep"
	stagePlayers       = "players"
	stagePerformUpkeep = "perform_upkeep"
	stageFulfill       = "fulfill"
	stageWinner        = "winner"
)

// Metrics counts what the keeper did on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	checks           prometheus.Counter
	upkeepsNeeded    prometheus.Counter
	upkeepsPerformed prometheus.Counter
	fulfilments      prometheus.Counter
	players          prometheus.Gauge
	errors           *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_upkeep_checks_total",
			Help: "Number of checkUpkeep calls",
		}),
		upkeepsNeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_upkeeps_needed_total",
			Help: "Number of checks that reported upkeep as needed",
		}),
		upkeepsPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_upkeeps_performed_total",
			Help: "Number of successful performUpkeep transactions",
		}),
		fulfilments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_randomness_fulfilments_total",
			Help: "Number of randomness requests answered through the VRF mock",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_raffle_players",
			Help: "Number of players in the current round",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_errors_total",
			Help: "Number of failed keeper steps",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(m.checks, m.upkeepsNeeded, m.upkeepsPerformed, m.fulfilments, m.players, m.errors)
	return m
}

func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) incError(stage string) {
	m.errors.WithLabelValues(stage).Inc()
}
