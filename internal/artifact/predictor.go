package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"rssi-anomaly/internal/models"
)

// Predictor одношаговый прогноз по окну нормализованных значений
type Predictor interface {
	Predict(window []float64) (float64, error)
	SequenceLength() int
	Kind() string
}

// ModelFile формат артефакта модели
type ModelFile struct {
	Version        string `json:"version"`
	Kind           string `json:"kind"`
	SequenceLength int    `json:"sequence_length"`

	// linear
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`

	// lstm
	Units           int         `json:"units,omitempty"`
	Kernel          [][]float64 `json:"kernel,omitempty"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel,omitempty"`
	LSTMBias        []float64   `json:"lstm_bias,omitempty"`
	DenseKernel     []float64   `json:"dense_kernel,omitempty"`
	DenseBias       float64     `json:"dense_bias,omitempty"`
}

// LoadModel читает артефакт модели
func LoadModel(path string) (Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read model %s: %v", models.ErrArtifactLoad, path, err)
	}
	return ParseModel(data, path)
}

// ParseModel разбирает содержимое артефакта модели
func ParseModel(data []byte, path string) (Predictor, error) {
	var file ModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode model %s: %v", models.ErrArtifactLoad, path, err)
	}

	switch file.Kind {
	case "linear":
		if file.SequenceLength != 0 && file.SequenceLength != len(file.Weights) {
			return nil, fmt.Errorf("%w: linear model declares sequence_length %d but has %d weights",
				models.ErrArtifactLoad, file.SequenceLength, len(file.Weights))
		}
		return NewLinearModel(file.Weights, file.Bias)
	case "lstm":
		return NewLSTMModel(file)
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", models.ErrArtifactLoad, file.Kind)
	}
}

// LinearModel авторегрессия: bias + Σ w[i]*x[i]
type LinearModel struct {
	weights []float64
	bias    float64
}

// NewLinearModel создает авторегрессионную модель
func NewLinearModel(weights []float64, bias float64) (*LinearModel, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: linear model has no weights", models.ErrArtifactLoad)
	}
	if !finite(weights...) || !finite(bias) {
		return nil, fmt.Errorf("%w: linear model weights must be finite", models.ErrArtifactLoad)
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return &LinearModel{weights: w, bias: bias}, nil
}

func (m *LinearModel) Predict(window []float64) (float64, error) {
	if len(window) != len(m.weights) {
		return 0, fmt.Errorf("%w: window length %d, model expects %d", models.ErrInternal, len(window), len(m.weights))
	}
	sum := m.bias
	for i, x := range window {
		sum += m.weights[i] * x
	}
	return sum, nil
}

func (m *LinearModel) SequenceLength() int { return len(m.weights) }

func (m *LinearModel) Kind() string { return "linear" }

// LSTMModel один слой LSTM (порядок гейтов i, f, c, o) и Dense(1) на выходе
type LSTMModel struct {
	seqLen    int
	units     int
	kernel    []float64   // 4*units, входная размерность 1
	recurrent [][]float64 // units x 4*units
	bias      []float64   // 4*units
	dense     []float64   // units
	denseBias float64
}

// NewLSTMModel проверяет размерности весов и создает модель
func NewLSTMModel(file ModelFile) (*LSTMModel, error) {
	u := file.Units
	switch {
	case file.SequenceLength < 1:
		return nil, fmt.Errorf("%w: lstm model needs sequence_length >= 1", models.ErrArtifactLoad)
	case u < 1:
		return nil, fmt.Errorf("%w: lstm model needs units >= 1", models.ErrArtifactLoad)
	case len(file.Kernel) != 1 || len(file.Kernel[0]) != 4*u:
		return nil, fmt.Errorf("%w: lstm kernel must be 1x%d", models.ErrArtifactLoad, 4*u)
	case len(file.RecurrentKernel) != u:
		return nil, fmt.Errorf("%w: lstm recurrent_kernel must be %dx%d", models.ErrArtifactLoad, u, 4*u)
	case len(file.LSTMBias) != 4*u:
		return nil, fmt.Errorf("%w: lstm bias must have %d values", models.ErrArtifactLoad, 4*u)
	case len(file.DenseKernel) != u:
		return nil, fmt.Errorf("%w: dense kernel must have %d values", models.ErrArtifactLoad, u)
	}
	for _, row := range file.RecurrentKernel {
		if len(row) != 4*u {
			return nil, fmt.Errorf("%w: lstm recurrent_kernel must be %dx%d", models.ErrArtifactLoad, u, 4*u)
		}
		if !finite(row...) {
			return nil, fmt.Errorf("%w: lstm weights must be finite", models.ErrArtifactLoad)
		}
	}
	if !finite(file.Kernel[0]...) || !finite(file.LSTMBias...) || !finite(file.DenseKernel...) || !finite(file.DenseBias) {
		return nil, fmt.Errorf("%w: lstm weights must be finite", models.ErrArtifactLoad)
	}

	return &LSTMModel{
		seqLen:    file.SequenceLength,
		units:     u,
		kernel:    file.Kernel[0],
		recurrent: file.RecurrentKernel,
		bias:      file.LSTMBias,
		dense:     file.DenseKernel,
		denseBias: file.DenseBias,
	}, nil
}

func (m *LSTMModel) Predict(window []float64) (float64, error) {
	if len(window) != m.seqLen {
		return 0, fmt.Errorf("%w: window length %d, model expects %d", models.ErrInternal, len(window), m.seqLen)
	}

	u := m.units
	h := make([]float64, u)
	c := make([]float64, u)
	z := make([]float64, 4*u)

	for _, x := range window {
		for j := 0; j < 4*u; j++ {
			z[j] = x*m.kernel[j] + m.bias[j]
		}
		for k := 0; k < u; k++ {
			if h[k] == 0 {
				continue
			}
			row := m.recurrent[k]
			for j := 0; j < 4*u; j++ {
				z[j] += h[k] * row[j]
			}
		}
		for k := 0; k < u; k++ {
			in := sigmoid(z[k])
			forget := sigmoid(z[u+k])
			cand := math.Tanh(z[2*u+k])
			out := sigmoid(z[3*u+k])
			c[k] = forget*c[k] + in*cand
			h[k] = out * math.Tanh(c[k])
		}
	}

	y := m.denseBias
	for k := 0; k < u; k++ {
		y += h[k] * m.dense[k]
	}
	return y, nil
}

func (m *LSTMModel) SequenceLength() int { return m.seqLen }

func (m *LSTMModel) Kind() string { return "lstm" }

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
