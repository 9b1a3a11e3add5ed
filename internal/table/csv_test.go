package table

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssi-anomaly/internal/models"
)

const sampleCSV = `timestamp,actual_rssi
2025-02-11 05:36:18,-10.83128802129999
2025-02-03 01:26:40,-11.30572313470003
2025-02-17 17:24:42,-10.33705862409999
2025-02-19 15:59:42,-11.7504838212
2025-02-02 14:17:53,-11.4132562584
2025-02-06 21:23:59,-31.80256386539996
`

func TestReadSeries(t *testing.T) {
	series, err := ReadSeries(strings.NewReader(sampleCSV), "timestamp", "actual_rssi")
	require.NoError(t, err)
	require.Len(t, series, 6)

	// порядок входа сохраняется, даже если время не монотонно
	assert.Equal(t, time.Date(2025, 2, 11, 5, 36, 18, 0, time.UTC), series[0].Timestamp)
	assert.Equal(t, time.Date(2025, 2, 3, 1, 26, 40, 0, time.UTC), series[1].Timestamp)
	assert.Equal(t, -31.80256386539996, series[5].RSSI)
}

func TestReadSeries_ColumnOrderAndExtras(t *testing.T) {
	in := "\ufeffdevice, rssi ,ts\nA,-50.5,2025-01-01T00:00:00Z\n\nB,-60,2025-01-01T00:01:00Z\n"
	series, err := ReadSeries(strings.NewReader(in), "ts", "rssi")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, -60.0, series[1].RSSI)
}

func TestReadSeries_Errors(t *testing.T) {
	_, err := ReadSeries(strings.NewReader(""), "timestamp", "rssi")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadSeries(strings.NewReader(sampleCSV), "timestamp", "rssi")
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "rssi")

	_, err = ReadSeries(strings.NewReader("timestamp,rssi\nyesterday,-10\n"), "timestamp", "rssi")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadSeries(strings.NewReader("timestamp,rssi\n2025-01-01 00:00:00,weak\n"), "timestamp", "rssi")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestWriteAndReadResults(t *testing.T) {
	base := time.Date(2025, 2, 11, 5, 36, 18, 0, time.UTC)
	points := []models.ScoredPoint{
		{Timestamp: base, ActualRSSI: -11.1, PredictedRSSI: -10.975, IsAnomaly: false},
		{Timestamp: base.Add(time.Second), ActualRSSI: -31.80256386539996, PredictedRSSI: -10.87, IsAnomaly: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, points))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,actual_rssi,predicted_rssi,is_anomaly", lines[0])
	assert.Equal(t, "2025-02-11 05:36:18,-11.1,-10.975,false", lines[1])

	got, err := ReadResults(&buf)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestReadResults_NumericBooleans(t *testing.T) {
	in := "timestamp,actual_rssi,predicted_rssi,is_anomaly\n2025-02-11 05:36:18,-31.8,-11.4,1\n2025-02-11 05:37:18,-11,-11.4,0\n"
	got, err := ReadResults(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsAnomaly)
	assert.False(t, got[1].IsAnomaly)
}

func TestReadResults_MissingColumns(t *testing.T) {
	_, err := ReadResults(strings.NewReader("timestamp,actual_rssi\n2025-02-11 05:36:18,-31.8\n"))
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "predicted_rssi")
	assert.Contains(t, err.Error(), "is_anomaly")
}

func TestReadResults_BadCells(t *testing.T) {
	_, err := ReadResults(strings.NewReader("timestamp,actual_rssi,predicted_rssi,is_anomaly\n2025-02-11 05:36:18,-31.8,-11.4,maybe\n"))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = ReadResults(strings.NewReader("timestamp,actual_rssi,predicted_rssi,is_anomaly\n2025-02-11 05:36:18,x,-11.4,true\n"))
	assert.ErrorIs(t, err, models.ErrValidation)
}
