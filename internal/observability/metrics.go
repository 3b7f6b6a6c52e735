// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farm-ledger/internal/amount"
	"farm-ledger/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	LedgerEvents     *prometheus.CounterVec
	HarvestsDeferred *prometheus.CounterVec
	RewardsPaid      prometheus.Counter
	FeesCollected    prometheus.Counter

	// Escrow metrics
	EscrowCalls   *prometheus.CounterVec
	EscrowDripped prometheus.Counter
	EscrowPending prometheus.Gauge

	// Balance gauges
	AvailableRewards prometheus.Gauge
	RewardPrincipal  prometheus.Gauge

	// Service metrics
	APIRequestLatency *prometheus.HistogramVec
	KeeperRuns        *prometheus.CounterVec
	EventsDropped     prometheus.Counter

	// Database metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBQueryErrors    *prometheus.CounterVec
	StoreWriteErrors *prometheus.CounterVec

	// Health metrics
	LastSnapshot prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "farm_ledger"
	}

	return &Metrics{
		LedgerEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Ledger events by kind",
		}, []string{"kind"}),
		HarvestsDeferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "harvests_deferred_total",
			Help:      "Harvests that carried rewards forward, by reason",
		}, []string{"reason"}),
		RewardsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rewards_paid_tokens_total",
			Help:      "Net rewards paid to holders, in whole reward tokens",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "fees_collected_tokens_total",
			Help:      "Performance fees routed to the fee recipient, in whole reward tokens",
		}),

		EscrowCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "calls_total",
			Help:      "Escrow calls made by the top-up automation, by outcome",
		}, []string{"op", "outcome"}),
		EscrowDripped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "dripped_tokens_total",
			Help:      "Tokens released by the escrow, in whole reward tokens",
		}),
		EscrowPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "escrow",
			Name:      "pending_tokens",
			Help:      "Accrued but undripped escrow balance, in whole reward tokens",
		}),

		AvailableRewards: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "available_rewards_tokens",
			Help:      "Reward balance not backing staked principal",
		}),
		RewardPrincipal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reward_token_principal_tokens",
			Help:      "Staked principal denominated in the reward token",
		}),

		APIRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		KeeperRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "runs_total",
			Help:      "Keeper ticks by decision",
		}, []string{"decision"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events a slow subscriber did not receive",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		StoreWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "store_write_errors_total",
			Help:      "Failed background writes by store",
		}, []string{"store"}),

		LastSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_snapshot_timestamp",
			Help:      "Unix timestamp of the last persisted ledger snapshot",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RewardDecimals is used to convert base units for token-denominated metrics.
var RewardDecimals uint8 = 18

func tokens(v sdkmath.Uint) float64 {
	return amount.ToDecimal(amount.Or0(v), RewardDecimals).InexactFloat64()
}

// RecordEvent updates the ledger counters for one event.
func RecordEvent(ev domain.Event) {
	DefaultMetrics.LedgerEvents.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case domain.EventHarvest:
		DefaultMetrics.RewardsPaid.Add(tokens(ev.Amount))
	case domain.EventHarvestDeferred:
		DefaultMetrics.HarvestsDeferred.WithLabelValues(ev.Detail).Inc()
	case domain.EventFee:
		DefaultMetrics.FeesCollected.Add(tokens(ev.Amount))
	case domain.EventDrip:
		DefaultMetrics.EscrowDripped.Add(tokens(ev.Amount))
	}
}

// RecordEscrowCall records the outcome of an automation escrow call.
func RecordEscrowCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.EscrowCalls.WithLabelValues(op, outcome).Inc()
}

// UpdateBalances sets the balance gauges.
func UpdateBalances(available, principal, escrowPending sdkmath.Uint) {
	DefaultMetrics.AvailableRewards.Set(tokens(available))
	DefaultMetrics.RewardPrincipal.Set(tokens(principal))
	DefaultMetrics.EscrowPending.Set(tokens(escrowPending))
}

// RecordAPIRequest records API request latency.
func RecordAPIRequest(route string, status int, seconds float64) {
	DefaultMetrics.APIRequestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(seconds)
}

// RecordKeeperRun records one keeper decision.
func RecordKeeperRun(decision string) {
	DefaultMetrics.KeeperRuns.WithLabelValues(decision).Inc()
}

// RecordEventDropped counts an event a subscriber missed.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordStoreWriteError counts a failed background write.
func RecordStoreWriteError(store string) {
	DefaultMetrics.StoreWriteErrors.WithLabelValues(store).Inc()
}

// RecordSnapshot records a persisted snapshot.
func RecordSnapshot(unix int64) {
	DefaultMetrics.LastSnapshot.Set(float64(unix))
}
