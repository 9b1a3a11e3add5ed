package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// PipelineRuns запуски конвейера по исходу
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssi_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	// PointsScored оцененные точки
	PointsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rssi_points_scored_total",
			Help: "Total number of aligned points scored",
		},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssi_anomalies_detected_total",
			Help: "Total number of anomalous points detected",
		},
		[]string{"policy"},
	)

	// PredictionLatency задержка прогноза по всем окнам запроса
	PredictionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rssi_prediction_latency_seconds",
			Help:    "Model prediction latency per pipeline run in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// QueueSize размер очереди пула прогнозов
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rssi_prediction_queue_size",
			Help: "Current size of the prediction queue",
		},
	)

	// ArtifactsLoaded загружены ли артефакты (1/0)
	ArtifactsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rssi_artifact_loaded",
			Help: "Whether the scaler and model artifacts are loaded",
		},
		[]string{"artifact"},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// CacheLookups попадания и промахи кэша результатов
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rssi_result_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"result"},
	)
)
