package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout формат временных меток в ответах и CSV файлах
const TimeLayout = "2006-01-02 15:04:05"

// inputLayouts допустимые форматы входных временных меток
var inputLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Reading одно измерение RSSI
type Reading struct {
	Timestamp time.Time
	RSSI      float64
}

// Series упорядоченный ряд измерений
type Series []Reading

// Values возвращает значения RSSI в исходном порядке
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.RSSI
	}
	return values
}

// NewSeries собирает ряд из параллельных столбцов значений и временных меток
func NewSeries(values []float64, timestamps []time.Time) (Series, error) {
	if len(values) != len(timestamps) {
		return nil, fmt.Errorf("%w: rssi values (%d) and timestamps (%d) must have the same length",
			ErrValidation, len(values), len(timestamps))
	}
	series := make(Series, len(values))
	for i := range values {
		series[i] = Reading{Timestamp: timestamps[i], RSSI: values[i]}
	}
	return series, nil
}

// ScoredPoint выровненная пара (факт, прогноз) с флагом аномалии
type ScoredPoint struct {
	Timestamp     time.Time
	ActualRSSI    float64
	PredictedRSSI float64
	IsAnomaly     bool
}

type scoredPointJSON struct {
	Timestamp     string  `json:"timestamp"`
	ActualRSSI    float64 `json:"actual_rssi"`
	PredictedRSSI float64 `json:"predicted_rssi"`
	IsAnomaly     bool    `json:"is_anomaly"`
}

// MarshalJSON сериализует точку с временем в формате TimeLayout
func (p ScoredPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoredPointJSON{
		Timestamp:     FormatTimestamp(p.Timestamp),
		ActualRSSI:    p.ActualRSSI,
		PredictedRSSI: p.PredictedRSSI,
		IsAnomaly:     p.IsAnomaly,
	})
}

// UnmarshalJSON разбирает точку, записанную MarshalJSON
func (p *ScoredPoint) UnmarshalJSON(data []byte) error {
	var raw scoredPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*p = ScoredPoint{
		Timestamp:     ts,
		ActualRSSI:    raw.ActualRSSI,
		PredictedRSSI: raw.PredictedRSSI,
		IsAnomaly:     raw.IsAnomaly,
	}
	return nil
}

// ReadingPayload запись входного массива POST /predict
type ReadingPayload struct {
	TS   string   `json:"ts"`
	RSSI *float64 `json:"rssi"`
}

// PredictResponse ответ POST /predict
type PredictResponse struct {
	SequenceLength int           `json:"sequence_length"`
	Threshold      float64       `json:"threshold"`
	Policy         string        `json:"policy"`
	InputLength    int           `json:"input_length"`
	AnomalyCount   int           `json:"anomaly_count"`
	Predictions    []ScoredPoint `json:"predictions"`
}

// BatchResponse ответ POST /batch-predict
type BatchResponse struct {
	TotalRecords   int           `json:"total_records"`
	ScoredRecords  int           `json:"scored_records"`
	AnomalyCount   int           `json:"anomaly_count"`
	SequenceLength int           `json:"sequence_length"`
	Threshold      float64       `json:"threshold"`
	Predictions    []ScoredPoint `json:"predictions"`
}

// SaveRequest тело POST /save-predictions
type SaveRequest struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	RSSIColumn string `json:"rssi_column"`
	TSColumn   string `json:"ts_column"`
}

// SaveResponse ответ POST /save-predictions
type SaveResponse struct {
	Status       string `json:"status"`
	OutputFile   string `json:"output_file"`
	InputRecords int    `json:"input_records"`
	TotalRecords int    `json:"total_records"`
	AnomalyCount int    `json:"anomaly_count"`
}

// LoadResponse ответ GET /load-data
type LoadResponse struct {
	File         string        `json:"file"`
	TotalRecords int           `json:"total_records"`
	AnomalyCount int           `json:"anomaly_count"`
	Records      []ScoredPoint `json:"records"`
}

// ParseTimestamp разбирает временную метку в одном из поддерживаемых форматов
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrValidation)
	}
	for _, layout := range inputLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrValidation, s)
}

// FormatTimestamp форматирует время для ответа
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimeLayout)
}

// CountAnomalies считает точки с флагом аномалии
func CountAnomalies(points []ScoredPoint) int {
	n := 0
	for _, p := range points {
		if p.IsAnomaly {
			n++
		}
	}
	return n
}
