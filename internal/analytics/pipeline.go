package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"rssi-anomaly/internal/artifact"
	"rssi-anomaly/internal/logger"
	"rssi-anomaly/internal/metrics"
	"rssi-anomaly/internal/models"
)

// ResultCache хранилище готовых результатов и журнала аномалий
type ResultCache interface {
	GetResult(ctx context.Context, key string) ([]models.ScoredPoint, bool, error)
	StoreResult(ctx context.Context, key string, points []models.ScoredPoint) error
	StoreAnomalies(ctx context.Context, points []models.ScoredPoint) error
}

// Config параметры конвейера
type Config struct {
	SequenceLength int
	Threshold      float64
	Policy         Policy
	Timeout        time.Duration
}

// Options параметры одного запуска
type Options struct {
	// Threshold переопределяет порог из конфигурации, если задан
	Threshold *float64
}

// Result выровненные точки и параметры, с которыми они получены
type Result struct {
	Points         []models.ScoredPoint
	SequenceLength int
	Threshold      float64
	Policy         Policy
	Cached         bool
}

// AnomalyCount число аномальных точек
func (r *Result) AnomalyCount() int {
	return models.CountAnomalies(r.Points)
}

// Pipeline нормализация -> окна -> прогноз -> денормализация -> оценка
type Pipeline struct {
	bundle *artifact.Bundle
	pool   *PredictPool
	cache  ResultCache
	cfg    Config
	log    *logger.Logger
}

// NewPipeline создает конвейер. cache и log могут быть nil.
func NewPipeline(bundle *artifact.Bundle, pool *PredictPool, cache ResultCache, cfg Config, log *logger.Logger) (*Pipeline, error) {
	if cfg.SequenceLength < 1 {
		return nil, fmt.Errorf("sequence length must be >= 1, got %d", cfg.SequenceLength)
	}
	if _, err := NewScorer(cfg.Threshold, cfg.Policy); err != nil {
		return nil, err
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDeviation
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		bundle: bundle,
		pool:   pool,
		cache:  cache,
		cfg:    cfg,
		log:    log,
	}, nil
}

// Config возвращает конфигурацию конвейера
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Ready сообщает, загружены ли артефакты
func (p *Pipeline) Ready() bool {
	return p.bundle.Ready() && p.pool != nil
}

// ArtifactStatus состояние загруженных артефактов
type ArtifactStatus struct {
	ScalerLoaded bool
	ModelLoaded  bool
	ScalerKind   string
	ModelKind    string
}

// Artifacts возвращает состояние артефактов без их перезагрузки
func (p *Pipeline) Artifacts() ArtifactStatus {
	var st ArtifactStatus
	if p.bundle == nil {
		return st
	}
	if p.bundle.Scaler != nil {
		st.ScalerLoaded = true
		st.ScalerKind = p.bundle.Scaler.Kind()
	}
	if p.bundle.Predictor != nil {
		st.ModelLoaded = true
		st.ModelKind = p.bundle.Predictor.Kind()
	}
	return st
}

// GetStats возвращает параметры конвейера и статистику пула
func (p *Pipeline) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"sequence_length": p.cfg.SequenceLength,
		"threshold":       p.cfg.Threshold,
		"policy":          p.cfg.Policy,
		"timeout_ms":      p.cfg.Timeout.Milliseconds(),
		"cache_enabled":   p.cache != nil,
	}
	if p.pool != nil {
		stats["pool"] = p.pool.GetStats()
	}
	return stats
}

// Run выполняет конвейер целиком. Любая ошибка прерывает запуск без частичного результата.
func (p *Pipeline) Run(ctx context.Context, series models.Series, opts Options) (*Result, error) {
	result, err := p.run(ctx, series, opts)
	switch {
	case err == nil:
		metrics.PipelineRuns.WithLabelValues("success").Inc()
	case errors.Is(err, models.ErrValidation):
		metrics.PipelineRuns.WithLabelValues("validation_error").Inc()
	default:
		metrics.PipelineRuns.WithLabelValues("error").Inc()
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, series models.Series, opts Options) (*Result, error) {
	if !p.Ready() {
		return nil, fmt.Errorf("%w: service not ready: model or scaler not loaded", models.ErrArtifactLoad)
	}

	scorer, err := p.scorer(opts)
	if err != nil {
		return nil, err
	}
	if err := p.validate(series); err != nil {
		return nil, err
	}

	seqLen := p.cfg.SequenceLength
	result := &Result{SequenceLength: seqLen, Threshold: scorer.Threshold, Policy: scorer.Policy}

	key := CacheKey(p.bundle.Fingerprint, series, seqLen, scorer)
	if p.cache != nil {
		points, ok, err := p.cache.GetResult(ctx, key)
		if err != nil {
			p.log.Warn().Err(err).Msg("result cache lookup failed")
		} else if ok {
			result.Points = points
			result.Cached = true
			return result, nil
		}
	}

	scaler := p.bundle.Scaler
	scaled := scaler.Normalize(series.Values())

	timestamps := make([]time.Time, len(series))
	for i, r := range series {
		timestamps[i] = r.Timestamp
	}
	windows := BuildWindows(scaled, timestamps, seqLen)

	inputs := make([][]float64, len(windows))
	nexts := make([]float64, len(windows))
	for i, w := range windows {
		inputs[i] = w.Values
		nexts[i] = w.Next
	}

	predictCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		predictCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	preds, err := p.pool.PredictAll(predictCtx, inputs)
	if err != nil {
		return nil, err
	}

	// факт восстанавливается из нормализованного значения, как и прогноз
	predicted := scaler.Denormalize(preds)
	actual := scaler.Denormalize(nexts)

	points := make([]models.ScoredPoint, len(windows))
	for i, w := range windows {
		if !finite(predicted[i]) {
			return nil, fmt.Errorf("%w: model produced non-finite prediction at position %d", models.ErrInternal, w.Index+seqLen)
		}
		points[i] = models.ScoredPoint{
			Timestamp:     w.Timestamp,
			ActualRSSI:    actual[i],
			PredictedRSSI: predicted[i],
			IsAnomaly:     scorer.Score(actual[i], predicted[i]),
		}
	}
	result.Points = points

	anomalies := result.AnomalyCount()
	metrics.PointsScored.Add(float64(len(points)))
	metrics.AnomaliesDetected.WithLabelValues(string(scorer.Policy)).Add(float64(anomalies))

	// ошибки кэша логируются и не прерывают запуск
	if p.cache != nil {
		if err := p.cache.StoreResult(ctx, key, points); err != nil {
			p.log.Warn().Err(err).Msg("result cache store failed")
		}
		if anomalies > 0 {
			if err := p.cache.StoreAnomalies(ctx, points); err != nil {
				p.log.Warn().Err(err).Msg("anomaly log store failed")
			}
		}
	}

	return result, nil
}

func (p *Pipeline) scorer(opts Options) (Scorer, error) {
	threshold := p.cfg.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	scorer, err := NewScorer(threshold, p.cfg.Policy)
	if err != nil {
		return Scorer{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return scorer, nil
}

func (p *Pipeline) validate(series models.Series) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: empty series: at least %d readings are required", models.ErrValidation, p.cfg.SequenceLength)
	}
	for i, r := range series {
		if !finite(r.RSSI) {
			return fmt.Errorf("%w: reading %d has non-finite rssi", models.ErrValidation, i)
		}
	}
	if len(series) < p.cfg.SequenceLength {
		return fmt.Errorf("%w: insufficient data points: got %d, need at least %d",
			models.ErrValidation, len(series), p.cfg.SequenceLength)
	}
	return nil
}

// CacheKey ключ результата: зависит от артефактов, ряда и всех параметров оценки
func CacheKey(fingerprint string, series models.Series, seqLen int, scorer Scorer) string {
	h := sha256.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	write(uint64(len(fingerprint)))
	h.Write([]byte(fingerprint))
	write(uint64(seqLen))
	write(math.Float64bits(scorer.Threshold))
	h.Write([]byte(scorer.Policy))
	for _, r := range series {
		write(uint64(r.Timestamp.UnixNano()))
		write(math.Float64bits(r.RSSI))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
