package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Certificate workflow
	CertificatesProcessed *prometheus.CounterVec
	TestigoNotifications  *prometheus.CounterVec
	EntriesPublished      prometheus.Counter

	// Text extraction
	OCRDuration *prometheus.HistogramVec

	// Scheduled messages
	MessagesDispatched *prometheus.CounterVec
	DispatchDuration   prometheus.Histogram

	// Outbox
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Store operations
	StoreOperations *prometheus.CounterVec
}

// New creates and registers all application metrics on reg. Tests pass a
// fresh prometheus.NewRegistry() so repeated construction does not collide.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CertificatesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_processed_total",
			Help:      "Certificates processed, by outcome",
		}, []string{"outcome"}),
		TestigoNotifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "testigo_notifications_total",
			Help:      "Primary testigo notification attempts, by result",
		}, []string{"result"}),
		EntriesPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_published_total",
			Help:      "Journal entries made public by legacy publication",
		}),
		OCRDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "Time spent extracting text, by media kind",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		MessagesDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_messages_total",
			Help:      "Scheduled messages handled by the dispatcher, by result",
		}, []string{"result"}),
		DispatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in one dispatcher tick",
			Buckets:   prometheus.DefBuckets,
		}),
		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that failed to publish",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Document store operations, by operation and status",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *Metrics {
	return New("test", prometheus.NewRegistry())
}
