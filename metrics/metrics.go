// Package metrics exposes plugin registry activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/pluggable"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "pluggable"

// ObserverID identifies the collector among registry observers.
const ObserverID = "pluggable.metrics"

// Counts is the part of a registry the state gauges read from.
type Counts interface {
	PluginCount() int
	LoadedPluginCount() int
	EnabledPluginCount() int
}

// Metrics collects plugin lifecycle metrics in its own Prometheus registry.
type Metrics struct {
	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
	registry *prometheus.Registry
}

// New creates the metrics and registers the state gauges reading from counts.
// Process and Go runtime collectors are included.
func New(namespace string, counts Counts) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_events_total",
				Help:      "Total number of plugin lifecycle events",
			},
			[]string{"event"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_failures_total",
				Help:      "Total number of failed plugin operations",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		m.events,
		m.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if counts != nil {
		for state, read := range map[string]func() int{
			"registered": counts.PluginCount,
			"loaded":     counts.LoadedPluginCount,
			"enabled":    counts.EnabledPluginCount,
		} {
			registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace:   namespace,
					Name:        "plugins",
					Help:        "Current number of plugins in each state",
					ConstLabels: prometheus.Labels{"state": state},
				},
				func() float64 { return float64(read()) },
			))
		}
	}
	return m
}

// Registry returns the Prometheus registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserverID returns the id the metrics register under.
func (m *Metrics) ObserverID() string { return ObserverID }

// OnEvent counts the event; failed events are also counted by operation.
func (m *Metrics) OnEvent(_ context.Context, event cloudevents.Event) error {
	name := event.Type()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	m.events.WithLabelValues(name).Inc()

	if event.Type() == pluggable.EventTypePluginFailed {
		data, err := pluggable.PluginEventDataFrom(event)
		if err != nil {
			return err
		}
		m.failures.WithLabelValues(data.Operation).Inc()
	}
	return nil
}

var _ pluggable.Observer = (*Metrics)(nil)
