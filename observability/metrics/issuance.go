package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IssuanceMetrics tracks registry activity: issued items, rejected
// requests and owner operations.
type IssuanceMetrics struct {
	issued     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	adminOps   *prometheus.CounterVec
	totalItems prometheus.Gauge
}

var (
	issuanceOnce     sync.Once
	issuanceRegistry *IssuanceMetrics
)

// Issuance returns the lazily-initialised registry metrics.
func Issuance() *IssuanceMetrics {
	issuanceOnce.Do(func() {
		issuanceRegistry = &IssuanceMetrics{
			issued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mint",
				Subsystem: "issuance",
				Name:      "items_total",
				Help:      "Count of items issued segmented by issuance mode.",
			}, []string{"mode"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mint",
				Subsystem: "issuance",
				Name:      "rejections_total",
				Help:      "Count of rejected issuance requests by mode and reason.",
			}, []string{"mode", "reason"}),
			adminOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mint",
				Subsystem: "registry",
				Name:      "admin_operations_total",
				Help:      "Owner operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			totalItems: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "mint",
				Subsystem: "issuance",
				Name:      "highest_item_id",
				Help:      "Highest item id issued so far.",
			}),
		}
		prometheus.MustRegister(
			issuanceRegistry.issued,
			issuanceRegistry.rejections,
			issuanceRegistry.adminOps,
			issuanceRegistry.totalItems,
		)
	})
	return issuanceRegistry
}

// RecordIssued adds quantity to the issued counter and advances the
// highest-id gauge.
func (m *IssuanceMetrics) RecordIssued(mode string, quantity uint64, lastID uint64) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(normalize(mode)).Add(float64(quantity))
	m.totalItems.Set(float64(lastID))
}

// RecordRejection counts a rejected issuance request.
func (m *IssuanceMetrics) RecordRejection(mode, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(normalize(mode), normalize(reason)).Inc()
}

// RecordAdmin counts an owner operation attempt.
func (m *IssuanceMetrics) RecordAdmin(operation, outcome string) {
	if m == nil {
		return
	}
	m.adminOps.WithLabelValues(normalize(operation), normalize(outcome)).Inc()
}

// SetHighestID seeds the gauge, e.g. after loading persisted state.
func (m *IssuanceMetrics) SetHighestID(id uint64) {
	if m == nil {
		return
	}
	m.totalItems.Set(float64(id))
}

func normalize(label string) string {
	trimmed := strings.ToLower(strings.TrimSpace(label))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
