package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSActiveConnections prometheus.Gauge
	WSConnectionsTotal  prometheus.Counter
	WSInboundMessages   *prometheus.CounterVec
	WSOutboundMessages  prometheus.Counter
	WSDroppedMessages   *prometheus.CounterVec

	// Delivery metrics
	NotificationDeliveries *prometheus.CounterVec
	QueueDrains            prometheus.Counter
	QueueDrainedItems      prometheus.Counter
	NotificationsPruned    prometheus.Counter

	// Typing metrics
	TypingSweepDeleted prometheus.Counter

	// Bus metrics
	BusErrorsTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),

			WSActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "ws_active_connections",
				Help: "Currently open websocket sessions in this process",
			}),
			WSConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ws_connections_total",
				Help: "Websocket sessions accepted",
			}),
			WSInboundMessages: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_inbound_messages_total",
					Help: "Client messages received, by decoded kind",
				},
				[]string{"kind"},
			),
			WSOutboundMessages: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ws_outbound_messages_total",
				Help: "Messages written to websocket clients",
			}),
			WSDroppedMessages: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_dropped_messages_total",
					Help: "Messages dropped before reaching a client",
				},
				[]string{"reason"},
			),

			NotificationDeliveries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notification_deliveries_total",
					Help: "Notification deliveries by path (direct, fallback)",
				},
				[]string{"path"},
			),
			QueueDrains: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notification_queue_drains_total",
				Help: "Offline queue drains",
			}),
			QueueDrainedItems: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notification_queue_drained_items_total",
				Help: "Queued notifications handed to reconnecting clients",
			}),
			NotificationsPruned: promauto.NewCounter(prometheus.CounterOpts{
				Name: "notifications_pruned_total",
				Help: "Old read notifications deleted by the retention sweep",
			}),

			TypingSweepDeleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "typing_sweep_deleted_total",
				Help: "Expired typing indicators removed by the sweep",
			}),

			BusErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "bus_errors_total",
					Help: "Failed shared bus operations",
				},
				[]string{"op"},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by rate limiting",
				},
				[]string{"scope"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it on first use.
func Get() *Metrics {
	return Initialize()
}
