// Package metrics exposes broadcaster and store activity as Prometheus
// collectors on a private registry.
package metrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every metric name unless configured otherwise.
const DefaultNamespace = "statecore"

// Collector implements event.Instrumentation and store.Instrumentation.
// It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	eventsDispatched *prometheus.CounterVec
	eventsDeferred   *prometheus.CounterVec
	pendingHigh      prometheus.Gauge
	operations       prometheus.Counter
	statesAccepted   prometheus.Counter
	statesUnchanged  prometheus.Counter

	mu      sync.Mutex
	highest int
}

// New creates a collector and registers its metrics on a fresh registry.
// An empty namespace uses DefaultNamespace.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broadcaster",
				Name:      "events_dispatched_total",
				Help:      "Fan-outs performed, by event kind",
			},
			[]string{"kind"},
		),
		eventsDeferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broadcaster",
				Name:      "events_deferred_total",
				Help:      "Reentrant dispatches parked on the pending queue, by event kind",
			},
			[]string{"kind"},
		),
		pendingHigh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "broadcaster",
				Name:      "pending_high_water",
				Help:      "Deepest pending queue observed",
			},
		),
		operations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Operations executed by the store pipeline",
			},
		),
		statesAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "states_accepted_total",
				Help:      "Diffs that produced a structurally new state",
			},
		),
		statesUnchanged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "states_unchanged_total",
				Help:      "Diffs suppressed because the state did not change",
			},
		),
	}

	c.registry.MustRegister(
		c.eventsDispatched,
		c.eventsDeferred,
		c.pendingHigh,
		c.operations,
		c.statesAccepted,
		c.statesUnchanged,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// EventDispatched implements event.Instrumentation.
func (c *Collector) EventDispatched(kind string) {
	c.eventsDispatched.WithLabelValues(kind).Inc()
}

// EventDeferred implements event.Instrumentation.
func (c *Collector) EventDeferred(kind string, pending int) {
	c.eventsDeferred.WithLabelValues(kind).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if pending > c.highest {
		c.highest = pending
		c.pendingHigh.Set(float64(pending))
	}
}

// OperationApplied implements store.Instrumentation.
func (c *Collector) OperationApplied() {
	c.operations.Inc()
}

// StateAccepted implements store.Instrumentation.
func (c *Collector) StateAccepted() {
	c.statesAccepted.Inc()
}

// StateUnchanged implements store.Instrumentation.
func (c *Collector) StateUnchanged() {
	c.statesUnchanged.Inc()
}

// WriteText writes every metric in the Prometheus text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
