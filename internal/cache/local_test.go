package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssi-anomaly/internal/models"
)

func TestLocalCache_ResultRoundTrip(t *testing.T) {
	c, err := NewLocalCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := c.GetResult(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	points := testPoints()
	require.NoError(t, c.StoreResult(ctx, "a", points))
	got, ok, err := c.GetResult(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, points, got)

	// изменение возвращенного среза не портит кэш
	got[0].ActualRSSI = 0
	again, _, _ := c.GetResult(ctx, "a")
	assert.Equal(t, points[0].ActualRSSI, again[0].ActualRSSI)
}

func TestLocalCache_Evicts(t *testing.T) {
	c, err := NewLocalCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.StoreResult(ctx, "a", testPoints()))
	require.NoError(t, c.StoreResult(ctx, "b", testPoints()))
	require.NoError(t, c.StoreResult(ctx, "c", testPoints()))

	_, ok, _ := c.GetResult(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.GetStats()["results"])
}

func TestLocalCache_Anomalies(t *testing.T) {
	c, err := NewLocalCache(8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.StoreAnomalies(ctx, testPoints()))
	recent, err := c.GetRecentAnomalies(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, -11.02, recent[0].ActualRSSI)
	assert.Equal(t, -31.8, recent[1].ActualRSSI)

	one, err := c.GetRecentAnomalies(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	none, err := c.GetRecentAnomalies(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, c.Ping(ctx))
}

func TestLocalCache_AnomalyLogIsBounded(t *testing.T) {
	c, err := NewLocalCache(1)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.ScoredPoint, maxLocalAnomalies+5)
	for i := range points {
		points[i] = models.ScoredPoint{Timestamp: base.Add(time.Duration(i) * time.Second), IsAnomaly: true}
	}
	require.NoError(t, c.StoreAnomalies(ctx, points))

	all, err := c.GetRecentAnomalies(ctx, maxLocalAnomalies+5)
	require.NoError(t, err)
	require.Len(t, all, maxLocalAnomalies)
	assert.True(t, points[len(points)-1].Timestamp.Equal(all[0].Timestamp))
}

func TestNewLocalCache_InvalidSize(t *testing.T) {
	_, err := NewLocalCache(0)
	assert.Error(t, err)
}
