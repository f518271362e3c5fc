// Package metrics holds the Prometheus collectors of the booking engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for slots, seats and reservations.
type Metrics struct {
	// SeatClaims counts claim and release outcomes of the capacity tracker.
	SeatClaims *prometheus.CounterVec

	// ClaimAttempts is the number of compare-and-swap attempts per claim.
	ClaimAttempts prometheus.Histogram

	// ReservationOps counts lifecycle operations by result code.
	ReservationOps *prometheus.CounterVec

	// SlotsGenerated is the total number of slots persisted by batch generation.
	SlotsGenerated prometheus.Counter

	// SlotCache counts listSlots cache lookups.
	SlotCache *prometheus.CounterVec

	// NotificationsSent counts outgoing notifications by status.
	NotificationsSent *prometheus.CounterVec

	// EventsDropped counts events discarded because the queue was full.
	EventsDropped prometheus.Counter

	// SweepCompleted is the total number of reservations completed by the sweep.
	SweepCompleted prometheus.Counter

	// CatalogReloads counts catalog.yaml reloads by result.
	CatalogReloads *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SeatClaims: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seat_claims_total",
				Help:      "Seat claim and release outcomes",
			},
			[]string{"outcome"},
		),

		ClaimAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seat_claim_attempts",
				Help:      "Compare-and-swap attempts per claim",
				Buckets:   []float64{1, 2, 3, 5, 8},
			},
		),

		ReservationOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_operations_total",
				Help:      "Reservation lifecycle operations by result",
			},
			[]string{"operation", "result"},
		),

		SlotsGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slots_generated_total",
				Help:      "Total number of generated slots",
			},
		),

		SlotCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slot_cache_lookups_total",
				Help:      "Slot listing cache lookups",
			},
			[]string{"result"},
		),

		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications sent",
			},
			[]string{"status"},
		),

		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Events dropped because the queue was full",
			},
		),

		SweepCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_completed_total",
				Help:      "Reservations completed by the periodic sweep",
			},
		),

		CatalogReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Catalog reloads by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveClaim records a capacity tracker outcome.
func (m *Metrics) ObserveClaim(outcome string, attempts int) {
	m.SeatClaims.WithLabelValues(outcome).Inc()
	if outcome == "claimed" {
		m.ClaimAttempts.Observe(float64(attempts))
	}
}

// ObserveReservation records a lifecycle operation result ("ok" or an error code).
func (m *Metrics) ObserveReservation(operation, result string) {
	m.ReservationOps.WithLabelValues(operation, result).Inc()
}

// AddSlotsGenerated increments the generated slots counter.
func (m *Metrics) AddSlotsGenerated(n int) {
	m.SlotsGenerated.Add(float64(n))
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	m.SlotCache.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// IncSent increments the notification counter for a status.
func (m *Metrics) IncSent(status string) {
	m.NotificationsSent.WithLabelValues(status).Inc()
}

// IncDropped increments the dropped events counter.
func (m *Metrics) IncDropped() {
	m.EventsDropped.Inc()
}

// AddSweepCompleted increments the sweep counter.
func (m *Metrics) AddSweepCompleted(n int) {
	m.SweepCompleted.Add(float64(n))
}

// ObserveCatalogReload counts one catalog reload.
func (m *Metrics) ObserveCatalogReload(result string) {
	m.CatalogReloads.WithLabelValues(result).Inc()
}
