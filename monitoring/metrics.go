package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_transactions_total",
			Help: "Top-up transaction outcomes per vertical",
		},
		[]string{"vertical", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "External provider call latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "operation"},
	)

	pendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topup_pending_transactions",
			Help: "Current number of transactions awaiting payment",
		},
	)

	feeTierMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topup_fee_tier_misses_total",
			Help: "Initiations whose amount matched no fee tier",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.collectPendingMetrics(ctx)
		cancel()
	}
}

func (m *Monitor) collectPendingMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "topup:pending:*").Result()
	if err != nil {
		return
	}
	pendingTransactions.Set(float64(len(keys)))
}

// TrackTransaction records a saga outcome.
func (m *Monitor) TrackTransaction(vertical, status string) {
	if m == nil {
		return
	}
	transactionsTotal.WithLabelValues(vertical, status).Inc()
}

// TrackProviderCall records the latency of one external call.
func (m *Monitor) TrackProviderCall(provider, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	providerRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// TrackFeeTierMiss records an initiation that fell outside the fee table.
func (m *Monitor) TrackFeeTierMiss() {
	if m == nil {
		return
	}
	feeTierMisses.Inc()
}
