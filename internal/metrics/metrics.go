package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 反馈学习管线的 Prometheus 指标，通过 GET /metrics 暴露
var (
	FeedbackCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_collected_total",
			Help: "Feedback entries accepted by collect_feedback",
		},
		[]string{"feedback_type"},
	)

	FeedbackDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_dropped_total",
			Help: "Queued feedback entries discarded because the queue was full",
		},
	)

	FeedbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_queue_depth",
			Help: "Entries currently waiting in the ingestion queue",
		},
	)

	FeedbackBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_batches_total",
			Help: "Worker cycles by outcome",
		},
		[]string{"result"}, // "ok", "panic"
	)

	ModelUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_updates_total",
			Help: "Successful model (re)trainings per learning objective",
		},
		[]string{"objective", "mode"}, // mode: "initial", "incremental"
	)

	ModelTrainingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_training_errors_total",
			Help: "Model fit failures per learning objective",
		},
		[]string{"objective"},
	)

	InsightsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_generated_total",
			Help: "Persisted learning insights",
		},
		[]string{"objective", "category"},
	)

	Adaptations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adaptations_total",
			Help: "Adaptation requests sent to collaborator services",
		},
		[]string{"service", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adaptation_circuit_breaker_state",
			Help: "Breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)
)
