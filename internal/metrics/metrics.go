// Package metrics holds the Prometheus collectors of the sync core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "letsdonate_sync_passes_total", Help: "Full sync passes by outcome"},
		[]string{"outcome"},
	)
	QueueProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "letsdonate_queue_processed_total", Help: "Sync queue entries uploaded"},
	)
	QueueFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "letsdonate_queue_failed_total", Help: "Sync queue upload attempts that failed"},
	)
	Online = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "letsdonate_online", Help: "1 when the server is reachable"},
	)
)

// Pass outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SyncPasses, QueueProcessed, QueueFailed, Online)
	})
}

// SetOnline records the connectivity state.
func SetOnline(online bool) {
	if online {
		Online.Set(1)
		return
	}
	Online.Set(0)
}
