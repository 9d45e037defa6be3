package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	httpPanicCounter         *prometheus.CounterVec
	ledgerImbalanceCounter   *prometheus.CounterVec
	duplicateEventCounter    *prometheus.CounterVec
	idempotencyCounter       *prometheus.CounterVec
	settlementPromoted       *prometheus.CounterVec
	settlementHeldCounter    *prometheus.CounterVec
	payoutTransitionCounter  *prometheus.CounterVec
	openPayoutsGauge         *prometheus.GaugeVec
	railRequestCounter       *prometheus.CounterVec
	workerRunCounter         *prometheus.CounterVec
	workerLockSkippedCounter *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		httpPanicCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_panics_total",
			Help: "Handler panics recovered by the HTTP middleware",
		}, []string{"path"})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Seller balance rows that diverged from their ledger sums",
		}, []string{"currency"})

		duplicateEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_duplicate_events_total",
			Help: "Replayed ledger events absorbed by the external_ref key",
		}, []string{"type"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		settlementPromoted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_promoted_entries_total",
			Help: "Pending ledger entries promoted to available",
		}, []string{"currency"})

		settlementHeldCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_held_entries_total",
			Help: "Due ledger entries left pending because of an open hold",
		}, []string{"kind"})

		payoutTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Payout state transitions",
		}, []string{"from", "to"})

		openPayoutsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payouts_open",
			Help: "Payouts waiting in a non-terminal state",
		}, []string{"status"})

		railRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_rail_requests_total",
			Help: "Calls to external payout rails",
		}, []string{"rail", "operation", "outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		workerLockSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_lock_skipped_total",
			Help: "Worker ticks skipped because another instance held the run lock",
		}, []string{"worker"})

		prometheus.MustRegister(
			httpDurationHistogram,
			httpPanicCounter,
			ledgerImbalanceCounter,
			duplicateEventCounter,
			idempotencyCounter,
			settlementPromoted,
			settlementHeldCounter,
			payoutTransitionCounter,
			openPayoutsGauge,
			railRequestCounter,
			workerRunCounter,
			workerLockSkippedCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementHTTPPanic(path string) {
	if httpPanicCounter == nil {
		return
	}
	httpPanicCounter.WithLabelValues(path).Inc()
}

func IncrementLedgerImbalance(currency string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(currency).Inc()
}

func IncrementDuplicateEvent(entryType string) {
	if duplicateEventCounter == nil {
		return
	}
	duplicateEventCounter.WithLabelValues(entryType).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func AddSettlementPromoted(currency string, n int) {
	if settlementPromoted == nil || n == 0 {
		return
	}
	settlementPromoted.WithLabelValues(currency).Add(float64(n))
}

func IncrementSettlementHeld(kind string) {
	if settlementHeldCounter == nil {
		return
	}
	settlementHeldCounter.WithLabelValues(kind).Inc()
}

func IncrementPayoutTransition(from, to string) {
	if payoutTransitionCounter == nil {
		return
	}
	payoutTransitionCounter.WithLabelValues(from, to).Inc()
}

func SetOpenPayouts(status string, n int64) {
	if openPayoutsGauge == nil {
		return
	}
	openPayoutsGauge.WithLabelValues(status).Set(float64(n))
}

func IncrementRailRequest(rail, operation, outcome string) {
	if railRequestCounter == nil {
		return
	}
	railRequestCounter.WithLabelValues(rail, operation, outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementWorkerLockSkipped(worker string) {
	if workerLockSkippedCounter == nil {
		return
	}
	workerLockSkippedCounter.WithLabelValues(worker).Inc()
}
