// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus instrumentation for the hotspot
// controller: lifecycle state, per-service health outcomes and the number
// of clients currently holding a DHCP lease.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the controller's metric set on a private registry so
// tests can build as many as they like without duplicate-registration
// panics.
type Collector struct {
	registry *prometheus.Registry

	lifecycleState   *prometheus.GaugeVec
	healthChecks     *prometheus.CounterVec
	connectedClients prometheus.Gauge
	serviceRestarts  *prometheus.CounterVec
	rulesApplied     prometheus.Gauge
}

// NewCollector builds a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		lifecycleState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flytrap",
			Name:      "lifecycle_state",
			Help:      "Current lifecycle state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flytrap",
			Name:      "health_checks_total",
			Help:      "Health check outcomes per supervised service.",
		}, []string{"service", "result"}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flytrap",
			Name:      "connected_clients",
			Help:      "Clients currently holding a DHCP lease.",
		}),
		serviceRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flytrap",
			Name:      "service_start_retries_total",
			Help:      "Start retries performed after stale-instance cleanup.",
		}, []string{"service"}),
		rulesApplied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flytrap",
			Name:      "firewall_rules_applied",
			Help:      "Firewall rules currently applied.",
		}),
	}
	c.registry.MustRegister(
		c.lifecycleState,
		c.healthChecks,
		c.connectedClients,
		c.serviceRestarts,
		c.rulesApplied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// SetLifecycleState marks state as the single active lifecycle state.
func (c *Collector) SetLifecycleState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		c.lifecycleState.WithLabelValues(s).Set(v)
	}
}

// ObserveHealthCheck records one health check outcome for a service.
func (c *Collector) ObserveHealthCheck(service string, healthy bool) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	c.healthChecks.WithLabelValues(service, result).Inc()
}

// SetConnectedClients updates the DHCP lease count gauge.
func (c *Collector) SetConnectedClients(n int) {
	c.connectedClients.Set(float64(n))
}

// ObserveStartRetry counts a cleanup-and-retry for a service.
func (c *Collector) ObserveStartRetry(service string) {
	c.serviceRestarts.WithLabelValues(service).Inc()
}

// SetRulesApplied updates the applied-rules gauge.
func (c *Collector) SetRulesApplied(n int) {
	c.rulesApplied.Set(float64(n))
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
