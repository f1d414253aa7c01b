// Package telemetry exposes Prometheus collectors for simulation runs.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fwdpop/internal/model"
)

const namespace = "fwdpop"

// Metrics holds the per-run collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	meanFitness *prometheus.GaugeVec
	segregating *prometheus.GaugeVec
	gametes     *prometheus.GaugeVec
	fixations   *prometheus.GaugeVec
	injections  *prometheus.CounterVec
}

func New() *Metrics {
	labels := []string{"run_id"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generations sampled.",
		}, labels),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of the last parental generation.",
		}, labels),
		segregating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segregating_mutations",
			Help:      "Live mutations after bookkeeping.",
		}, labels),
		gametes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gametes",
			Help:      "Distinct gametes with a non-zero count.",
		}, labels),
		fixations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fixations",
			Help:      "Fixations recorded so far.",
		}, labels),
		injections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injections_total",
			Help:      "Mutations placed by the injector.",
		}, labels),
	}
	m.registry.MustRegister(m.generations, m.meanFitness, m.segregating, m.gametes, m.fixations, m.injections)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveGeneration(runID string, stats model.GenerationStats) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(runID).Inc()
	m.meanFitness.WithLabelValues(runID).Set(stats.MeanFitness)
	m.segregating.WithLabelValues(runID).Set(float64(stats.Segregating))
	m.gametes.WithLabelValues(runID).Set(float64(stats.Gametes))
	m.fixations.WithLabelValues(runID).Set(float64(stats.Fixations))
}

func (m *Metrics) ObserveInjection(runID string) {
	if m == nil {
		return
	}
	m.injections.WithLabelValues(runID).Inc()
}
