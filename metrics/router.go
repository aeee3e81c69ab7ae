// Package metrics provides Prometheus metrics for a readsplit.Router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ice-blockchain/go-readsplit"
	"github.com/ice-blockchain/go-readsplit/affinity"
)

// DefaultNamespace is used when an empty namespace is given.
const DefaultNamespace = "readsplit"

const subsystem = "router"

// StatusSuccess is the label value for operations that returned no error.
const StatusSuccess = "success"

// StatusFailure is the label value for operations that returned an error.
const StatusFailure = "failure"

// DefaultDispatchLatencyBuckets are latency buckets for routed operations,
// from sub-millisecond local calls up to multi-second broadcasts.
var DefaultDispatchLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.5,    // 500ms
	1.0,    // 1s
	5.0,    // 5s
}

// RouterMetrics holds router metrics. It implements readsplit.Observer.
type RouterMetrics struct {
	// DispatchTotal counts routed operations.
	// Labels: affinity, target, status
	DispatchTotal *prometheus.CounterVec

	// DispatchDuration tracks the time spent on the node(s) serving an
	// operation.
	// Labels: affinity
	DispatchDuration *prometheus.HistogramVec

	// TransactionsTotal counts ended transactional sequences.
	// Labels: kind (multi, pipeline), outcome (exec, discard)
	TransactionsTotal *prometheus.CounterVec

	// TransactionDuration tracks the time a router stayed pinned.
	// Labels: kind
	TransactionDuration *prometheus.HistogramVec

	// AffinityResolutionsTotal counts operations classified by probing the
	// primary.
	// Labels: affinity
	AffinityResolutionsTotal *prometheus.CounterVec
}

var _ readsplit.Observer = (*RouterMetrics)(nil)

// NewRouterMetrics creates and registers router metrics with the default
// registry.
func NewRouterMetrics(namespace string) *RouterMetrics {
	return newRouterMetrics(promauto.With(prometheus.DefaultRegisterer), namespace)
}

// NewRouterMetricsWithRegistry creates router metrics registered with a
// custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewRouterMetricsWithRegistry(reg prometheus.Registerer, namespace string) *RouterMetrics {
	return newRouterMetrics(promauto.With(reg), namespace)
}

func newRouterMetrics(factory promauto.Factory, namespace string) *RouterMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &RouterMetrics{
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatch_total",
				Help:      "Total number of routed operations, broken down by affinity, target and status.",
			},
			[]string{"affinity", "target", "status"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatch_duration_seconds",
				Help:      "Routed operation latency in seconds, broken down by affinity.",
				Buckets:   DefaultDispatchLatencyBuckets,
			},
			[]string{"affinity"},
		),
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transactions_total",
				Help:      "Total number of ended transactional sequences, broken down by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transaction_duration_seconds",
				Help:      "Time in seconds the router stayed pinned to the primary, broken down by kind.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		AffinityResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "affinity_resolutions_total",
				Help:      "Total number of operations classified by probing the primary.",
			},
			[]string{"affinity"},
		),
	}
}

// ObserveDispatch records a routed operation.
func (m *RouterMetrics) ObserveDispatch(_ string, a affinity.Affinity, target readsplit.Target,
	elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(a.String(), target.String(), status(err)).Inc()
	m.DispatchDuration.WithLabelValues(a.String()).Observe(elapsed.Seconds())
}

// ObserveResolution records a first-time classification.
func (m *RouterMetrics) ObserveResolution(_ string, a affinity.Affinity) {
	if m == nil {
		return
	}
	m.AffinityResolutionsTotal.WithLabelValues(a.String()).Inc()
}

// ObserveTransaction records an ended transactional sequence.
func (m *RouterMetrics) ObserveTransaction(kind readsplit.TxnKind, outcome readsplit.TxnOutcome,
	elapsed time.Duration, _ error) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(kind.String(), outcome.String()).Inc()
	m.TransactionDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
