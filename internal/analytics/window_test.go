package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqTimes(n int) []time.Time {
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func seqValues(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestBuildWindows_CountAndAlignment(t *testing.T) {
	for _, tc := range []struct {
		n, l, want int
	}{
		{15, 10, 5},
		{11, 10, 1},
		{10, 10, 0},
		{6, 10, 0},
		{1, 1, 0},
		{5, 1, 4},
		{0, 3, 0},
	} {
		values, ts := seqValues(tc.n), seqTimes(tc.n)
		windows := BuildWindows(values, ts, tc.l)
		require.Len(t, windows, tc.want, "n=%d l=%d", tc.n, tc.l)

		for k, w := range windows {
			assert.Equal(t, k, w.Index)
			assert.Len(t, w.Values, tc.l)
			assert.Equal(t, values[k:k+tc.l], w.Values)
			assert.Equal(t, values[k+tc.l], w.Next)
			assert.True(t, ts[k+tc.l].Equal(w.Timestamp), "window %d timestamp drifted", k)
		}
	}
}

func TestBuildWindows_InvalidInputs(t *testing.T) {
	assert.Empty(t, BuildWindows(seqValues(5), seqTimes(5), 0))
	assert.Empty(t, BuildWindows(seqValues(5), seqTimes(4), 2))
	assert.NotNil(t, BuildWindows(nil, nil, 3))
}

func TestBuildWindows_WindowsDoNotAlias(t *testing.T) {
	values := seqValues(6)
	windows := BuildWindows(values, seqTimes(6), 3)
	require.Len(t, windows, 3)

	// append к окну не должен затирать соседнее значение ряда
	_ = append(windows[0].Values, 100)
	assert.Equal(t, 3.0, values[3])
}
