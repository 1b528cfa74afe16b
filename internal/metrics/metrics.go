// Package metrics holds the Prometheus collectors of the sync engine and the
// remote sync server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "organizer_sync_queue_depth",
		Help: "Entries waiting in the outbound sync queue",
	})

	SyncDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organizer_sync_deliveries_total",
		Help: "Snapshot delivery attempts by result (success, failure, dead_letter, superseded)",
	}, []string{"result"})

	PollerPulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organizer_poller_pulls_total",
		Help: "Remote pulls by result (applied, unchanged, missing, failure)",
	}, []string{"result"})

	PollerConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "organizer_poller_consecutive_failures",
		Help: "Consecutive failed remote pulls",
	})

	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_snapshot_writes_total",
		Help: "Snapshot uploads handled by the sync server by result",
	}, []string{"result"})

	RealtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kanso_realtime_subscribers",
		Help: "Open realtime push connections",
	})

	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "organizer_remote_requests_total",
		Help: "Remote store requests by operation and result (success, failure, rejected)",
	}, []string{"op", "result"})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "organizer_remote_circuit_breaker_state",
		Help: "Remote store circuit breaker state (0=closed, 1=half-open, 2=open)",
	})

	PushReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "organizer_push_reconnects_total",
		Help: "Realtime push listener reconnect attempts",
	})
)
