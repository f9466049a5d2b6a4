package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mintgate/core/events"
	"mintgate/observability/metrics"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured registry events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mint",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of registry events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// MetricsEmitter is an events.Emitter that turns registry events into
// Prometheus samples.
type MetricsEmitter struct{}

// Emit implements events.Emitter.
func (MetricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().RecordEvent(evt.EventType())
	switch e := evt.(type) {
	case events.IssuanceItemsIssued:
		metrics.Issuance().RecordIssued(e.Mode, e.Quantity(), e.LastID)
	case events.IssuanceRoleGranted:
		metrics.Issuance().RecordAdmin("grant_role", "applied")
	case events.IssuanceRoleRevoked:
		metrics.Issuance().RecordAdmin("revoke_role", "applied")
	case events.IssuancePhaseUpdated:
		metrics.Issuance().RecordAdmin("set_"+e.Phase+"_start", "applied")
	}
}
