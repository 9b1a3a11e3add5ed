package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rssi-anomaly/internal/analytics"
	"rssi-anomaly/internal/artifact"
	"rssi-anomaly/internal/cache"
	"rssi-anomaly/internal/config"
	"rssi-anomaly/internal/handlers"
	"rssi-anomaly/internal/logger"
	"rssi-anomaly/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal().Err(err).Msg("invalid configuration")
	}
	log, logCloser := logger.NewWithFile(cfg.LogLevel, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxMB,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
	defer logCloser.Close()
	log.Info().Msg("Starting RSSI anomaly detection service...")

	// Артефакты загружаются один раз; без них сервис не принимает трафик
	bundle, err := artifact.Load(cfg.ScalerPath, cfg.ModelPath, cfg.SequenceLength)
	if err != nil {
		log.Fatal().Err(err).
			Str("scaler_path", cfg.ScalerPath).
			Str("model_path", cfg.ModelPath).
			Msg("failed to load artifacts")
	}
	metrics.ArtifactsLoaded.WithLabelValues("scaler").Set(1)
	metrics.ArtifactsLoaded.WithLabelValues("model").Set(1)
	log.Info().
		Str("scaler_kind", bundle.Scaler.Kind()).
		Str("model_kind", bundle.Predictor.Kind()).
		Int("sequence_length", cfg.SequenceLength).
		Msg("artifacts loaded")

	// Пул воркеров для вызовов модели
	pool := analytics.NewPredictPool(bundle.Predictor, 1000)
	pool.Start(cfg.PredictWorkers)
	defer pool.Stop()

	// Redis опционален: без него кэш результатов и журнал аномалий живут в памяти
	var (
		resultCache analytics.ResultCache
		store       handlers.AnomalyStore
	)
	if cfg.RedisEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResultsTTL())
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to Redis")
		}
		defer redisCache.Close()
		resultCache = redisCache
		store = redisCache
		log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	} else if cfg.LocalCacheSize > 0 {
		localCache, err := cache.NewLocalCache(cfg.LocalCacheSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create local cache")
		}
		resultCache = localCache
		store = localCache
		log.Info().Int("size", cfg.LocalCacheSize).Msg("Using in-process result cache")
	}

	pipeline, err := analytics.NewPipeline(bundle, pool, resultCache, analytics.Config{
		SequenceLength: cfg.SequenceLength,
		Threshold:      cfg.AnomalyThreshold,
		Policy:         cfg.Policy(),
		Timeout:        cfg.PredictTimeout(),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	log.Info().
		Float64("threshold", cfg.AnomalyThreshold).
		Str("policy", string(cfg.Policy())).
		Int("workers", cfg.PredictWorkers).
		Msg("Pipeline ready")

	handler := handlers.NewHandler(pipeline, store, log, handlers.Options{
		DataDir:        cfg.DataDir,
		ResultsFile:    cfg.ResultsFile,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		CORSOrigins:    cfg.CORSOrigins,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Периодическое обновление метрик
	stopMetrics := make(chan struct{})
	go updateMetrics(pool, stopMetrics)

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	close(stopMetrics)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server stopped gracefully")
}

// updateMetrics периодически обновляет метрики
func updateMetrics(pool *analytics.PredictPool, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if queueSize, ok := pool.GetStats()["queue_size"].(int); ok {
				metrics.QueueSize.Set(float64(queueSize))
			}
		}
	}
}
