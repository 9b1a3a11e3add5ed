package table

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssi-anomaly/internal/models"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()

	p, err := Resolve(dir, "out/predictions.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "predictions.csv"), p)

	for _, name := range []string{"", "  ", "../secret.csv", "/etc/passwd", "a/../../b.csv"} {
		_, err := Resolve(dir, name)
		assert.ErrorIs(t, err, models.ErrValidation, "name=%q", name)
	}
}

func TestOpen_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.csv"), "missing.csv")
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.NotContains(t, err.Error(), dir)
}

func TestWriteResultsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")
	points := []models.ScoredPoint{
		{Timestamp: time.Date(2025, 2, 11, 5, 36, 18, 0, time.UTC), ActualRSSI: -31.8, PredictedRSSI: -11.4, IsAnomaly: true},
	}

	require.NoError(t, WriteResultsFile(path, "nested/out.csv", points))

	f, err := Open(path, "nested/out.csv")
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadResults(f)
	require.NoError(t, err)
	assert.Equal(t, points, got)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}
