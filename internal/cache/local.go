package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"rssi-anomaly/internal/metrics"
	"rssi-anomaly/internal/models"
)

// maxLocalAnomalies сколько аномалий хранит локальный журнал
const maxLocalAnomalies = 1000

// LocalCache кэш результатов в памяти процесса, используется когда Redis выключен
type LocalCache struct {
	results *lru.Cache[string, []models.ScoredPoint]

	mu        sync.Mutex
	anomalies []models.ScoredPoint
}

// NewLocalCache создает LRU кэш на size результатов
func NewLocalCache(size int) (*LocalCache, error) {
	results, err := lru.New[string, []models.ScoredPoint](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{results: results}, nil
}

// GetResult получает сохраненный результат по ключу ряда
func (c *LocalCache) GetResult(_ context.Context, key string) ([]models.ScoredPoint, bool, error) {
	points, ok := c.results.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return clonePoints(points), true, nil
}

// StoreResult сохраняет копию результата
func (c *LocalCache) StoreResult(_ context.Context, key string, points []models.ScoredPoint) error {
	c.results.Add(key, clonePoints(points))
	return nil
}

// StoreAnomalies добавляет аномальные точки в журнал, старые вытесняются
func (c *LocalCache) StoreAnomalies(_ context.Context, points []models.ScoredPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range points {
		if p.IsAnomaly {
			c.anomalies = append(c.anomalies, p)
		}
	}
	sort.SliceStable(c.anomalies, func(i, j int) bool {
		return c.anomalies[i].Timestamp.After(c.anomalies[j].Timestamp)
	})
	if len(c.anomalies) > maxLocalAnomalies {
		c.anomalies = c.anomalies[:maxLocalAnomalies]
	}
	return nil
}

// GetRecentAnomalies возвращает последние аномалии, новые первыми
func (c *LocalCache) GetRecentAnomalies(_ context.Context, limit int) ([]models.ScoredPoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit < 1 {
		return []models.ScoredPoint{}, nil
	}
	if limit > len(c.anomalies) {
		limit = len(c.anomalies)
	}
	return clonePoints(c.anomalies[:limit]), nil
}

// Ping локальный кэш всегда доступен
func (c *LocalCache) Ping(context.Context) error {
	return nil
}

// GetStats возвращает заполненность кэша
func (c *LocalCache) GetStats() map[string]interface{} {
	c.mu.Lock()
	anomalies := len(c.anomalies)
	c.mu.Unlock()

	return map[string]interface{}{
		"backend":   "local",
		"results":   c.results.Len(),
		"anomalies": anomalies,
	}
}

func clonePoints(points []models.ScoredPoint) []models.ScoredPoint {
	out := make([]models.ScoredPoint, len(points))
	copy(out, points)
	return out
}
