package analytics

import (
	"fmt"
	"math"
	"strings"
)

// Policy правило отнесения точки к аномалиям
type Policy string

const (
	// PolicyDeviation аномалия при |actual - predicted| > threshold
	PolicyDeviation Policy = "deviation"
	// PolicyDrop аномалия только при падении сигнала: predicted - actual > threshold
	PolicyDrop Policy = "drop"
)

// DefaultThreshold порог отклонения по умолчанию, дБ
const DefaultThreshold = 15.0

// ParsePolicy разбирает название политики
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyDeviation, "":
		return PolicyDeviation, nil
	case PolicyDrop:
		return PolicyDrop, nil
	default:
		return "", fmt.Errorf("unknown anomaly policy %q", s)
	}
}

// Score политика по умолчанию: |actual - predicted| > threshold
func Score(actual, predicted, threshold float64) bool {
	return math.Abs(actual-predicted) > threshold
}

// Scorer сравнивает факт и прогноз в исходных единицах
type Scorer struct {
	Threshold float64
	Policy    Policy
}

// NewScorer создает скорер с проверкой порога
func NewScorer(threshold float64, policy Policy) (Scorer, error) {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return Scorer{}, fmt.Errorf("threshold must be a finite non-negative number, got %v", threshold)
	}
	if policy == "" {
		policy = PolicyDeviation
	}
	return Scorer{Threshold: threshold, Policy: policy}, nil
}

// Score возвращает флаг аномалии
func (s Scorer) Score(actual, predicted float64) bool {
	if s.Policy == PolicyDrop {
		return predicted-actual > s.Threshold
	}
	return Score(actual, predicted, s.Threshold)
}
