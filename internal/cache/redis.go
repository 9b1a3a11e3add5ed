package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rssi-anomaly/internal/metrics"
	"rssi-anomaly/internal/models"
)

const anomalyListKey = "anomaly_list"

// RedisCache кэш результатов конвейера и журнал аномалий в Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// storedPoint формат хранения с точным временем
type storedPoint struct {
	Timestamp     time.Time `json:"ts"`
	ActualRSSI    float64   `json:"actual_rssi"`
	PredictedRSSI float64   `json:"predicted_rssi"`
	IsAnomaly     bool      `json:"is_anomaly"`
}

// NewRedisCache создает новый Redis кэш
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func resultKey(key string) string {
	return "prediction:" + key
}

// GetResult получает сохраненный результат по ключу ряда
func (r *RedisCache) GetResult(ctx context.Context, key string) ([]models.ScoredPoint, bool, error) {
	data, err := r.client.Get(ctx, resultKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.RedisOperations.WithLabelValues("get_result", "error").Inc()
		return nil, false, fmt.Errorf("failed to get result: %w", err)
	}
	metrics.RedisOperations.WithLabelValues("get_result", "success").Inc()

	var stored []storedPoint
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return fromStored(stored), true, nil
}

// StoreResult сохраняет результат конвейера
func (r *RedisCache) StoreResult(ctx context.Context, key string, points []models.ScoredPoint) error {
	data, err := json.Marshal(toStored(points))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := r.client.Set(ctx, resultKey(key), data, r.ttl).Err(); err != nil {
		metrics.RedisOperations.WithLabelValues("store_result", "error").Inc()
		return err
	}
	metrics.RedisOperations.WithLabelValues("store_result", "success").Inc()
	return nil
}

// StoreAnomalies добавляет аномальные точки в sorted set (с более длительным TTL)
func (r *RedisCache) StoreAnomalies(ctx context.Context, points []models.ScoredPoint) error {
	// Аномалии хранятся дольше
	anomalyTTL := r.ttl * 24

	pipe := r.client.Pipeline()
	added := 0
	for _, p := range points {
		if !p.IsAnomaly {
			continue
		}
		member, err := json.Marshal(toStored([]models.ScoredPoint{p})[0])
		if err != nil {
			return fmt.Errorf("failed to marshal anomaly: %w", err)
		}
		pipe.ZAdd(ctx, anomalyListKey, redis.Z{Score: float64(p.Timestamp.Unix()), Member: member})
		added++
	}
	if added == 0 {
		return nil
	}
	pipe.Expire(ctx, anomalyListKey, anomalyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RedisOperations.WithLabelValues("store_anomaly", "error").Inc()
		return err
	}
	metrics.RedisOperations.WithLabelValues("store_anomaly", "success").Inc()
	return nil
}

// GetRecentAnomalies получает последние аномалии, новые первыми
func (r *RedisCache) GetRecentAnomalies(ctx context.Context, limit int) ([]models.ScoredPoint, error) {
	if limit < 1 {
		return []models.ScoredPoint{}, nil
	}
	results, err := r.client.ZRevRange(ctx, anomalyListKey, 0, int64(limit-1)).Result()
	if err != nil {
		metrics.RedisOperations.WithLabelValues("get_anomalies", "error").Inc()
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	metrics.RedisOperations.WithLabelValues("get_anomalies", "success").Inc()

	stored := make([]storedPoint, 0, len(results))
	for _, member := range results {
		var sp storedPoint
		if err := json.Unmarshal([]byte(member), &sp); err != nil {
			metrics.RedisOperations.WithLabelValues("get_anomalies", "decode_error").Inc()
			continue
		}
		stored = append(stored, sp)
	}
	return fromStored(stored), nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats возвращает статистику Redis
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"backend":     "redis",
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

func toStored(points []models.ScoredPoint) []storedPoint {
	out := make([]storedPoint, len(points))
	for i, p := range points {
		out[i] = storedPoint{
			Timestamp:     p.Timestamp,
			ActualRSSI:    p.ActualRSSI,
			PredictedRSSI: p.PredictedRSSI,
			IsAnomaly:     p.IsAnomaly,
		}
	}
	return out
}

func fromStored(stored []storedPoint) []models.ScoredPoint {
	out := make([]models.ScoredPoint, len(stored))
	for i, sp := range stored {
		out[i] = models.ScoredPoint{
			Timestamp:     sp.Timestamp,
			ActualRSSI:    sp.ActualRSSI,
			PredictedRSSI: sp.PredictedRSSI,
			IsAnomaly:     sp.IsAnomaly,
		}
	}
	return out
}
