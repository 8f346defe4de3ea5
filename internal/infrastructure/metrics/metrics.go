// Package metrics exposes Prometheus collectors for the stock core and
// implements the domain observer ports.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bakery/internal/core/apperror"
	"bakery/internal/domain/ledger"
	"bakery/internal/domain/posting"
	"bakery/internal/domain/reservation"
)

// Confirmation results.
const (
	ResultConfirmed = "confirmed"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

// Metrics holds every collector.
type Metrics struct {
	movements     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	postLatency   *prometheus.HistogramVec
	reservations  *prometheus.CounterVec
	resLatency    *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	drift         prometheus.Gauge
}

var (
	_ ledger.Recorder      = (*Metrics)(nil)
	_ posting.Observer     = (*Metrics)(nil)
	_ reservation.Observer = (*Metrics)(nil)
)

// New registers the collectors against registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Ledger movements appended, by type.",
		}, []string{"type"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_in_confirmations_total",
			Help: "Stock-in confirmation attempts, by result.",
		}, []string{"result"}),
		postLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stock_posting_duration_seconds",
			Help:    "Time to post a document to the ledger.",
			Buckets: prometheus.DefBuckets,
		}, []string{"ref_type"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Reservation engine calls, by operation and result.",
		}, []string{"op", "result"}),
		resLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stock_reservation_duration_seconds",
			Help:    "Reservation engine call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stock_ledger_drift_products",
			Help: "Products whose counter disagrees with the ledger at the last reconciliation.",
		}),
	}

	registerer.MustRegister(
		m.movements, m.confirmations, m.postLatency,
		m.reservations, m.resLatency,
		m.httpRequests, m.httpLatency, m.drift,
	)
	return m
}

// MovementAppended implements ledger.Recorder.
func (m *Metrics) MovementAppended(t ledger.MovementType) {
	m.movements.WithLabelValues(string(t)).Inc()
}

// Posted implements posting.Observer. Only stock-in postings count as
// confirmations.
func (m *Metrics) Posted(refType ledger.RefType, _ int, elapsed time.Duration, err error) {
	m.postLatency.WithLabelValues(string(refType)).Observe(elapsed.Seconds())
	if refType != ledger.RefStockIn {
		return
	}
	m.confirmations.WithLabelValues(resultOf(err)).Inc()
}

// ReservationOutcome implements reservation.Observer.
func (m *Metrics) ReservationOutcome(op, outcome string, elapsed time.Duration) {
	m.reservations.WithLabelValues(op, outcome).Inc()
	m.resLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetDrift records the number of drifting products.
func (m *Metrics) SetDrift(products int) {
	m.drift.Set(float64(products))
}

func resultOf(err error) string {
	if err == nil {
		return ResultConfirmed
	}
	if appErr, ok := apperror.AsAppError(err); ok && !appErr.IsServerSide() {
		return ResultRejected
	}
	return ResultFailed
}
