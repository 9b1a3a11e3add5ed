package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"rssi-anomaly/internal/models"
)

// ScalerFile формат артефакта нормализатора
type ScalerFile struct {
	Version      string     `json:"version"`
	Kind         string     `json:"kind"`
	DataMin      float64    `json:"data_min"`
	DataMax      float64    `json:"data_max"`
	FeatureRange [2]float64 `json:"feature_range"`
	Mean         float64    `json:"mean"`
	Scale        float64    `json:"scale"`
}

// Scaler одномерное аффинное преобразование y = x*scale + offset
type Scaler struct {
	kind   string
	scale  float64
	offset float64
}

// NewMinMaxScaler создает скейлер с семантикой MinMaxScaler
func NewMinMaxScaler(dataMin, dataMax, lo, hi float64) (*Scaler, error) {
	if !finite(dataMin, dataMax, lo, hi) {
		return nil, fmt.Errorf("%w: minmax scaler parameters must be finite", models.ErrArtifactLoad)
	}
	if dataMax == dataMin {
		return nil, fmt.Errorf("%w: minmax scaler has zero data range", models.ErrArtifactLoad)
	}
	if hi == lo {
		return nil, fmt.Errorf("%w: minmax scaler has zero feature range", models.ErrArtifactLoad)
	}
	scale := (hi - lo) / (dataMax - dataMin)
	return &Scaler{kind: "minmax", scale: scale, offset: lo - dataMin*scale}, nil
}

// NewStandardScaler создает скейлер y = (x - mean) / scale
func NewStandardScaler(mean, scale float64) (*Scaler, error) {
	if !finite(mean, scale) {
		return nil, fmt.Errorf("%w: standard scaler parameters must be finite", models.ErrArtifactLoad)
	}
	if scale == 0 {
		return nil, fmt.Errorf("%w: standard scaler has zero scale", models.ErrArtifactLoad)
	}
	return &Scaler{kind: "standard", scale: 1 / scale, offset: -mean / scale}, nil
}

// LoadScaler читает артефакт нормализатора
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read scaler %s: %v", models.ErrArtifactLoad, path, err)
	}
	return ParseScaler(data, path)
}

// ParseScaler разбирает содержимое артефакта нормализатора
func ParseScaler(data []byte, path string) (*Scaler, error) {
	var file ScalerFile
	file.FeatureRange = [2]float64{0, 1}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode scaler %s: %v", models.ErrArtifactLoad, path, err)
	}

	switch file.Kind {
	case "minmax", "":
		return NewMinMaxScaler(file.DataMin, file.DataMax, file.FeatureRange[0], file.FeatureRange[1])
	case "standard":
		return NewStandardScaler(file.Mean, file.Scale)
	default:
		return nil, fmt.Errorf("%w: unknown scaler kind %q", models.ErrArtifactLoad, file.Kind)
	}
}

// Kind возвращает тип скейлера
func (s *Scaler) Kind() string {
	return s.kind
}

// Normalize применяет преобразование поэлементно. Значения вне диапазона обучения
// экстраполируются линейно.
func (s *Scaler) Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.scale + s.offset
	}
	return out
}

// Denormalize применяет обратное преобразование
func (s *Scaler) Denormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.offset) / s.scale
	}
	return out
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
