package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the protocol edge and the background workers.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_requests_total",
			Help: "Inbound protocol requests by action and ACK/NACK outcome",
		},
		[]string{"action", "ack"},
	)

	NacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_nacks_total",
			Help: "NACK responses by error code",
		},
		[]string{"code"},
	)

	SignatureFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_signature_failures_total",
			Help: "Inbound signature verification failures, by whether they were enforced",
		},
		[]string{"enforced"},
	)

	ReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ondc_message_replays_total",
			Help: "Requests whose message_id was probably seen before",
		},
	)

	EnqueueFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_enqueue_failures_total",
			Help: "Acknowledged requests that could not be queued",
		},
		[]string{"kind"},
	)

	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_callbacks_total",
			Help: "Outbound on_* callbacks by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ondc_callback_duration_seconds",
			Help:    "Duration of outbound callback POSTs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ondc_task_duration_seconds",
			Help:    "Duration of background task handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ReconOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondc_recon_outcomes_total",
			Help: "Settlement reconciliation results by recon status code",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(NacksTotal)
		prometheus.MustRegister(SignatureFailuresTotal)
		prometheus.MustRegister(ReplaysTotal)
		prometheus.MustRegister(EnqueueFailuresTotal)
		prometheus.MustRegister(CallbacksTotal)
		prometheus.MustRegister(CallbackDuration)
		prometheus.MustRegister(TaskDuration)
		prometheus.MustRegister(ReconOutcomesTotal)
	})
}
