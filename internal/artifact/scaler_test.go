package artifact

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssi-anomaly/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMinMaxScaler_RoundTrip(t *testing.T) {
	s, err := NewMinMaxScaler(-95, -5, 0, 1)
	require.NoError(t, err)

	values := []float64{-95, -80.5, -50, -31.80256386539996, -10.83128802129999, -5}
	back := s.Denormalize(s.Normalize(values))
	for i, v := range values {
		assert.InEpsilon(t, v, back[i], 1e-6, "value %v", v)
	}
}

func TestMinMaxScaler_Normalize(t *testing.T) {
	s, err := NewMinMaxScaler(-100, 0, 0, 1)
	require.NoError(t, err)

	got := s.Normalize([]float64{-100, -50, 0})
	assert.InDelta(t, 0.0, got[0], 1e-12)
	assert.InDelta(t, 0.5, got[1], 1e-12)
	assert.InDelta(t, 1.0, got[2], 1e-12)
}

func TestMinMaxScaler_ExtrapolatesOutsideRange(t *testing.T) {
	s, err := NewMinMaxScaler(-100, 0, 0, 1)
	require.NoError(t, err)

	got := s.Normalize([]float64{-200, 50})
	assert.InDelta(t, -1.0, got[0], 1e-12)
	assert.InDelta(t, 1.5, got[1], 1e-12)

	back := s.Denormalize([]float64{3})
	assert.InDelta(t, 200.0, back[0], 1e-9)
}

func TestStandardScaler_RoundTrip(t *testing.T) {
	s, err := NewStandardScaler(-40, 12.5)
	require.NoError(t, err)

	norm := s.Normalize([]float64{-40, -27.5})
	assert.InDelta(t, 0.0, norm[0], 1e-12)
	assert.InDelta(t, 1.0, norm[1], 1e-12)

	values := []float64{-90, -40, -1.25}
	back := s.Denormalize(s.Normalize(values))
	for i, v := range values {
		assert.InEpsilon(t, v, back[i], 1e-6)
	}
}

func TestScaler_Degenerate(t *testing.T) {
	_, err := NewMinMaxScaler(-10, -10, 0, 1)
	assert.ErrorIs(t, err, models.ErrArtifactLoad)

	_, err = NewMinMaxScaler(-10, 0, 1, 1)
	assert.ErrorIs(t, err, models.ErrArtifactLoad)

	_, err = NewStandardScaler(0, 0)
	assert.ErrorIs(t, err, models.ErrArtifactLoad)

	_, err = NewStandardScaler(math.NaN(), 1)
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
}

func TestLoadScaler(t *testing.T) {
	path := writeFile(t, "scaler.json", `{"version":"1","kind":"minmax","data_min":-100,"data_max":0}`)
	s, err := LoadScaler(path)
	require.NoError(t, err)
	assert.Equal(t, "minmax", s.Kind())
	assert.InDelta(t, 0.25, s.Normalize([]float64{-75})[0], 1e-12)

	path = writeFile(t, "standard.json", `{"kind":"standard","mean":-50,"scale":10}`)
	s, err = LoadScaler(path)
	require.NoError(t, err)
	assert.Equal(t, "standard", s.Kind())
}

func TestLoadScaler_Errors(t *testing.T) {
	_, err := LoadScaler(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, models.ErrArtifactLoad)

	_, err = LoadScaler(writeFile(t, "corrupt.json", `{not json`))
	assert.ErrorIs(t, err, models.ErrArtifactLoad)

	_, err = LoadScaler(writeFile(t, "kind.json", `{"kind":"robust"}`))
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
}
