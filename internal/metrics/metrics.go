package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkermage/esplink/internal/device"
)

const namespace = "esplink"

// Metrics holds the agent's Prometheus collectors
type Metrics struct {
	Probes            *prometheus.CounterVec
	Discoveries       *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	Reports           *prometheus.CounterVec
	Rediscoveries     prometheus.Counter
	Commands          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probe attempts by result.",
		}, []string{"result"}),
		Discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Discovery passes by winning strategy.",
		}, []string{"strategy"}),
		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Time spent in a discovery pass.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Telemetry reports by result.",
		}, []string{"result"}),
		Rediscoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rediscoveries_total",
			Help:      "Times sustained send failures forced a new discovery.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Device commands received by kind.",
		}, []string{"kind"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Probes, m.Discoveries, m.DiscoveryDuration, m.Reports, m.Rediscoveries, m.Commands)
	return m
}

// ObserveProbe counts a probe attempt
func (m *Metrics) ObserveProbe(result device.ProbeResult) {
	m.Probes.WithLabelValues(string(result)).Inc()
}

// ObserveDiscovery records a finished discovery pass
func (m *Metrics) ObserveDiscovery(strategy string, elapsed time.Duration) {
	if strategy == "" {
		strategy = "unresolved"
	}
	m.Discoveries.WithLabelValues(strategy).Inc()
	m.DiscoveryDuration.Observe(elapsed.Seconds())
}

// ObserveReport counts a report round-trip
func (m *Metrics) ObserveReport(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Reports.WithLabelValues(result).Inc()
}

// ObserveRediscovery counts a failure-triggered discovery
func (m *Metrics) ObserveRediscovery() {
	m.Rediscoveries.Inc()
}

// ObserveCommand counts a received command
func (m *Metrics) ObserveCommand(kind string) {
	m.Commands.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
