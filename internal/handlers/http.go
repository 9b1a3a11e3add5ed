package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rssi-anomaly/internal/analytics"
	"rssi-anomaly/internal/logger"
	"rssi-anomaly/internal/metrics"
	"rssi-anomaly/internal/models"
)

// AnomalyStore журнал аномалий и состояние кэша
type AnomalyStore interface {
	GetRecentAnomalies(ctx context.Context, limit int) ([]models.ScoredPoint, error)
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
}

// Options параметры HTTP слоя
type Options struct {
	DataDir        string
	ResultsFile    string
	MaxUploadBytes int64
	MaxBodyBytes   int64
	// CORSOrigins пустой список отключает CORS
	CORSOrigins []string
}

// Handler обработчик HTTP запросов
type Handler struct {
	pipeline *analytics.Pipeline
	store    AnomalyStore
	log      *logger.Logger
	opts     Options
}

// NewHandler создает новый обработчик. store может быть nil, если Redis выключен.
func NewHandler(pipeline *analytics.Pipeline, store AnomalyStore, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.ResultsFile == "" {
		opts.ResultsFile = "predictions.csv"
	}
	return &Handler{
		pipeline: pipeline,
		store:    store,
		log:      log,
		opts:     opts,
	}
}

// Router собирает маршруты сервиса
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.log.HTTPLogger)
	r.Use(middleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Post("/predict", instrument("/predict", h.Predict))
	r.Post("/batch-predict", instrument("/batch-predict", h.BatchPredict))
	r.Post("/save-predictions", instrument("/save-predictions", h.SavePredictions))
	r.Get("/load-data", instrument("/load-data", h.LoadData))
	r.Get("/anomalies", instrument("/anomalies", h.GetAnomalies))
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", instrument("/stats", h.GetStats))

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// instrument учитывает запрос в Prometheus метриках
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)

		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
	}
}

// Predict обрабатывает POST /predict. Тело: массив записей {"ts", "rssi"}.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	opts, err := thresholdOption(r.URL.Query().Get("threshold"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	series, err := decodeReadings(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.pipeline.Run(r.Context(), series, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PredictResponse{
		SequenceLength: result.SequenceLength,
		Threshold:      result.Threshold,
		Policy:         string(result.Policy),
		InputLength:    len(series),
		AnomalyCount:   result.AnomalyCount(),
		Predictions:    result.Points,
	})
}

// GetAnomalies обрабатывает GET /anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, fmt.Errorf("%w: anomaly log is not enabled", models.ErrNotFound))
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			h.writeError(w, fmt.Errorf("%w: limit must be an integer between 1 and 1000", models.ErrValidation))
			return
		}
		limit = n
	}

	anomalies, err := h.store.GetRecentAnomalies(r.Context(), limit)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: failed to retrieve anomalies: %v", models.ErrInternal, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomaly_count": len(anomalies),
		"anomalies":     anomalies,
	})
}

// HealthCheck обрабатывает GET /health. Артефакты не перезагружаются.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.pipeline.Artifacts()

	status := "healthy"
	httpStatus := http.StatusOK
	if !st.ModelLoaded || !st.ScalerLoaded {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":          status,
		"model_loaded":    st.ModelLoaded,
		"scaler_loaded":   st.ScalerLoaded,
		"model_kind":      st.ModelKind,
		"scaler_kind":     st.ScalerKind,
		"sequence_length": h.pipeline.Config().SequenceLength,
		"timestamp":       time.Now(),
	}

	// кэш необязателен: недоступность только понижает статус
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		cacheOK := h.store.Ping(ctx) == nil
		body["cache"] = cacheOK
		if !cacheOK && httpStatus == http.StatusOK {
			body["status"] = "degraded"
		}
	}

	writeJSON(w, httpStatus, body)
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"pipeline":  h.pipeline.GetStats(),
		"timestamp": time.Now(),
	}
	if h.store != nil {
		body["cache"] = h.store.GetStats()
	}
	writeJSON(w, http.StatusOK, body)
}

// decodeReadings разбирает канонический массив {"ts", "rssi"}
func decodeReadings(body io.Reader) (models.Series, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", models.ErrValidation, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: failed to read request body: %v", models.ErrValidation, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", models.ErrValidation)
	}
	if data[0] != '[' {
		return nil, fmt.Errorf("%w: request body must be a JSON array of {\"ts\", \"rssi\"} records", models.ErrValidation)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var payload []models.ReadingPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: invalid JSON: unexpected data after the readings array", models.ErrValidation)
	}

	series := make(models.Series, len(payload))
	for i, p := range payload {
		if p.RSSI == nil {
			return nil, fmt.Errorf("%w: record %d: rssi is required", models.ErrValidation, i)
		}
		ts, err := models.ParseTimestamp(p.TS)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		series[i] = models.Reading{Timestamp: ts, RSSI: *p.RSSI}
	}
	return series, nil
}

// thresholdOption разбирает необязательное переопределение порога
func thresholdOption(s string) (analytics.Options, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return analytics.Options{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return analytics.Options{}, fmt.Errorf("%w: threshold must be a finite non-negative number, got %q", models.ErrValidation, s)
	}
	return analytics.Options{Threshold: &v}, nil
}

// writeError отображает ошибку конвейера в HTTP статус
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrArtifactLoad):
		h.log.Error().Err(err).Msg("service not ready")
	default:
		h.log.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
