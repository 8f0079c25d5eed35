package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the ledger module.
// Tracks write outcomes, lookup hit rates and operation durations.
type Metrics struct {
	TransactionsRecorded *prometheus.CounterVec
	RecordFailures       *prometheus.CounterVec
	VerifyLookups        *prometheus.CounterVec
	ReceiptPublishFailed prometheus.Counter
	ReceiptsSent         prometheus.Counter
	ReceiptsDropped      prometheus.Counter
	ReceiptQueueDepth    prometheus.Gauge
	CompensationsRun     *prometheus.CounterVec
	IntegrityMismatches  prometheus.Gauge
	RecordDuration       prometheus.Histogram
	VerifyDuration       prometheus.Histogram
	HistoryDuration      prometheus.Histogram
	ValidateDuration     prometheus.Histogram
}

// New creates a Metrics instance registered with the default Prometheus registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransactionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licita_ledger_transactions_recorded_total",
			Help: "Total number of ledger transactions recorded, by kind",
		}, []string{"kind"}),
		RecordFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licita_ledger_record_failures_total",
			Help: "Total number of failed ledger writes, by reason",
		}, []string{"reason"}),
		VerifyLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licita_ledger_verify_lookups_total",
			Help: "Total number of hash lookups, by outcome (found, not_found)",
		}, []string{"outcome"}),
		ReceiptPublishFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "licita_ledger_receipt_publish_failures_total",
			Help: "Total number of ledger receipts that could not be handed to the receipt feed",
		}),
		ReceiptsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "licita_ledger_receipts_sent_total",
			Help: "Total number of ledger receipts acknowledged by the receipt feed",
		}),
		ReceiptsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "licita_ledger_receipts_dropped_total",
			Help: "Total number of ledger receipts dropped because the send buffer was full",
		}),
		ReceiptQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "licita_ledger_receipt_queue_depth",
			Help: "Number of ledger receipts waiting to be sent",
		}),
		CompensationsRun: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licita_ledger_compensations_total",
			Help: "Total number of compensating actions run after a failed audited write, by result",
		}, []string{"result"}),
		IntegrityMismatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "licita_ledger_integrity_mismatches",
			Help: "Number of records whose stored hash did not match on the last integrity sweep",
		}),
		RecordDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "licita_ledger_record_duration_seconds",
			Help:    "Duration of Record operations",
			Buckets: durationBuckets,
		}),
		VerifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "licita_ledger_verify_duration_seconds",
			Help:    "Duration of Verify operations",
			Buckets: durationBuckets,
		}),
		HistoryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "licita_ledger_history_duration_seconds",
			Help:    "Duration of the store query behind one History iteration",
			Buckets: durationBuckets,
		}),
		ValidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "licita_ledger_validate_duration_seconds",
			Help:    "Duration of full integrity sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// IncrementRecorded records a successful ledger write.
func (m *Metrics) IncrementRecorded(kind string) {
	m.TransactionsRecorded.WithLabelValues(kind).Inc()
}

// IncrementRecordFailure records a failed write. reason is one of
// validation, serialization, conflict, store.
func (m *Metrics) IncrementRecordFailure(reason string) {
	m.RecordFailures.WithLabelValues(reason).Inc()
}

// IncrementVerify records a lookup outcome.
func (m *Metrics) IncrementVerify(found bool) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	m.VerifyLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReceiptPublishFailed() {
	m.ReceiptPublishFailed.Inc()
}

// AddReceiptsSent records receipts acknowledged by the feed.
func (m *Metrics) AddReceiptsSent(n int) {
	m.ReceiptsSent.Add(float64(n))
}

func (m *Metrics) IncrementReceiptsDropped() {
	m.ReceiptsDropped.Inc()
}

func (m *Metrics) SetReceiptQueueDepth(n int) {
	m.ReceiptQueueDepth.Set(float64(n))
}

// IncrementCompensation records a compensating action. result is "ok" or "failed".
func (m *Metrics) IncrementCompensation(result string) {
	m.CompensationsRun.WithLabelValues(result).Inc()
}

func (m *Metrics) SetIntegrityMismatches(n int) {
	m.IntegrityMismatches.Set(float64(n))
}

// ObserveRecord records the duration of a Record operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRecord(start time.Time) {
	m.RecordDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

// ObserveHistory records the duration of a History store query.
func (m *Metrics) ObserveHistory(start time.Time) {
	m.HistoryDuration.Observe(time.Since(start).Seconds())
}

// ObserveValidate records the duration of an integrity sweep.
func (m *Metrics) ObserveValidate(start time.Time) {
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}
