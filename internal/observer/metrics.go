package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
)

var metricsEnabled = true // Flag to control metric collection

// Webhook ingestion metrics
var (
	webhookLabels = []string{"kind"} // message or status

	WebhookEventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_webhook_events_received_total",
			Help: "Total number of messages and statuses received on the webhook.",
		},
		webhookLabels,
	)
	WebhookEventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_webhook_events_processed_total",
			Help: "Total number of webhook entries processed, labeled by outcome and error type.",
		},
		[]string{"kind", "outcome", "error_type"},
	)
	WebhookProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_crm_webhook_processing_duration_seconds",
			Help:    "Histogram of per-entry webhook processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		webhookLabels,
	)
)

// Gateway metrics
var (
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_gateway_requests_total",
			Help: "Total number of calls to the WhatsApp Cloud API, labeled by result.",
		},
		[]string{"operation", "result"},
	)
	GatewayRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_crm_gateway_request_duration_seconds",
			Help:    "Histogram of WhatsApp Cloud API call durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Pipeline metrics
var (
	CampaignRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_campaign_recipients_total",
			Help: "Total number of campaign recipients processed, labeled by outcome.",
		},
		[]string{"outcome"}, // sent, failed, skipped
	)
	StatusCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_status_callbacks_total",
			Help: "Total number of delivery status callbacks, labeled by status and whether they were applied.",
		},
		[]string{"status", "result"}, // applied, ignored, unknown
	)
	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_stage_transitions_total",
			Help: "Total number of contact stage transitions.",
		},
		[]string{"to_stage", "actor"},
	)
	RealtimePublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_realtime_publish_failures_total",
			Help: "Total number of realtime events that could not be published.",
		},
		[]string{"publisher", "topic"},
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_crm_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Worker pool metrics
var (
	workerPoolTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_worker_pool_tasks_submitted_total",
			Help: "Total number of tasks submitted to a worker pool.",
		},
		[]string{"pool"},
	)
	workerPoolTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_worker_pool_tasks_processed_total",
			Help: "Total number of tasks processed by a worker pool, labeled by final status.",
		},
		[]string{"pool", "status"},
	)
	workerPoolProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_crm_worker_pool_processing_duration_seconds",
			Help:    "Histogram of worker pool task durations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 16),
		},
		[]string{"pool"},
	)
	workerPoolQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wa_crm_worker_pool_queue_length",
			Help: "Approximate number of tasks waiting in a worker pool queue.",
		},
		[]string{"pool"},
	)
)

// Load generator metrics (cmd/tester)
var (
	LoadgenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_crm_loadgen_requests_total",
			Help: "Total number of webhook requests sent by the load generator, labeled by kind and result.",
		},
		[]string{"kind", "result"},
	)
	LoadgenRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_crm_loadgen_request_duration_seconds",
			Help:    "Histogram of webhook round trip durations seen by the load generator.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"kind"},
	)
)

// InitMetrics toggles metric collection. Metrics are registered by promauto
// regardless; disabling only stops the helpers from recording.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncWebhookReceived counts a message or status arriving on the webhook.
func IncWebhookReceived(kind string) {
	if !metricsEnabled {
		return
	}
	WebhookEventsReceivedTotal.WithLabelValues(kind).Inc()
}

// ObserveWebhookProcessed records the outcome and duration of one webhook entry.
func ObserveWebhookProcessed(kind string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	outcome, errorType := "success", "none"
	switch {
	case apperrors.IsGatewayError(err):
		outcome, errorType = "error", "gateway"
	case err != nil:
		outcome, errorType = "error", SanitizeErrorType(err.Error())
	}
	WebhookEventsProcessedTotal.WithLabelValues(kind, outcome, errorType).Inc()
	WebhookProcessingDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveGatewayRequest records one WhatsApp Cloud API call.
func ObserveGatewayRequest(operation, result string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	GatewayRequestsTotal.WithLabelValues(operation, result).Inc()
	GatewayRequestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncCampaignRecipient counts a campaign recipient outcome.
func IncCampaignRecipient(outcome string) {
	if !metricsEnabled {
		return
	}
	CampaignRecipientsTotal.WithLabelValues(outcome).Inc()
}

// IncStatusCallback counts a delivery status callback.
func IncStatusCallback(status, result string) {
	if !metricsEnabled {
		return
	}
	StatusCallbacksTotal.WithLabelValues(status, result).Inc()
}

// IncStageTransition counts a stage change.
func IncStageTransition(toStage, actor string) {
	if !metricsEnabled {
		return
	}
	StageTransitionsTotal.WithLabelValues(toStage, actor).Inc()
}

// IncRealtimePublishFailure counts an event that could not be published.
func IncRealtimePublishFailure(publisher, topic string) {
	if !metricsEnabled {
		return
	}
	RealtimePublishFailuresTotal.WithLabelValues(publisher, topic).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// IncWorkerPoolTasksSubmitted increments the counter for submitted tasks.
func IncWorkerPoolTasksSubmitted(pool string) {
	if !metricsEnabled {
		return
	}
	workerPoolTasksSubmittedTotal.WithLabelValues(pool).Inc()
}

// IncWorkerPoolTasksProcessed increments the counter for processed tasks by status.
func IncWorkerPoolTasksProcessed(pool, status string) {
	if !metricsEnabled {
		return
	}
	workerPoolTasksProcessedTotal.WithLabelValues(pool, status).Inc()
}

// ObserveWorkerPoolProcessingDuration records the processing time for a pool task.
func ObserveWorkerPoolProcessingDuration(pool string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	workerPoolProcessingDurationSeconds.WithLabelValues(pool).Observe(duration.Seconds())
}

// SetWorkerPoolQueueLength sets the current queue length of a pool.
func SetWorkerPoolQueueLength(pool string, length int) {
	if !metricsEnabled {
		return
	}
	workerPoolQueueLength.WithLabelValues(pool).Set(float64(length))
}

// ObserveLoadgenRequest records one load generator webhook call.
func ObserveLoadgenRequest(kind, result string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	LoadgenRequestsTotal.WithLabelValues(kind, result).Inc()
	LoadgenRequestDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	errStr = strings.ToLower(errStr)
	switch {
	case strings.Contains(errStr, "duplicate"):
		return "duplicate"
	case strings.HasPrefix(errStr, "whatsapp "), strings.Contains(errStr, "whatsapp gateway"), strings.Contains(errStr, "rate limited"):
		return "gateway"
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "sql"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}
