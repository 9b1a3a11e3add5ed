package analytics

import "time"

// Window окно из L нормализованных значений и значение, которое оно предсказывает
type Window struct {
	Values    []float64
	Next      float64
	Timestamp time.Time
	Index     int
}

// BuildWindows строит окна с шагом 1: окно i покрывает [i, i+L) и предсказывает
// позицию i+L. Для ряда короче L (или при L < 1) возвращает пустой срез.
func BuildWindows(values []float64, timestamps []time.Time, seqLen int) []Window {
	n := len(values)
	if seqLen < 1 || n <= seqLen || len(timestamps) != n {
		return []Window{}
	}

	windows := make([]Window, 0, n-seqLen)
	for i := 0; i+seqLen < n; i++ {
		windows = append(windows, Window{
			Values:    values[i : i+seqLen : i+seqLen],
			Next:      values[i+seqLen],
			Timestamp: timestamps[i+seqLen],
			Index:     i,
		})
	}
	return windows
}
