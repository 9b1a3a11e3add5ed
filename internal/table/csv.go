package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"rssi-anomaly/internal/models"
)

// ResultColumns заголовок таблицы результатов
var ResultColumns = []string{"timestamp", "actual_rssi", "predicted_rssi", "is_anomaly"}

// ReadSeries читает ряд измерений из CSV с заголовком; имена столбцов настраиваются
func ReadSeries(r io.Reader, tsColumn, rssiColumn string) (models.Series, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header, tsColumn, rssiColumn)
	if err != nil {
		return nil, err
	}
	tsIdx, rssiIdx := idx[0], idx[1]

	var (
		values     []float64
		timestamps []time.Time
	)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", models.ErrValidation, line, err)
		}
		if blank(record) {
			continue
		}

		ts, err := models.ParseTimestamp(cell(record, tsIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rssi, err := strconv.ParseFloat(strings.TrimSpace(cell(record, rssiIdx)), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: column %q is not a number", models.ErrValidation, line, rssiColumn)
		}
		timestamps = append(timestamps, ts)
		values = append(values, rssi)
	}

	return models.NewSeries(values, timestamps)
}

// WriteResults пишет таблицу timestamp, actual_rssi, predicted_rssi, is_anomaly
func WriteResults(w io.Writer, points []models.ScoredPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{
			models.FormatTimestamp(p.Timestamp),
			formatFloat(p.ActualRSSI),
			formatFloat(p.PredictedRSSI),
			strconv.FormatBool(p.IsAnomaly),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadResults читает ранее сохраненную таблицу результатов
func ReadResults(r io.Reader) ([]models.ScoredPoint, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header, ResultColumns...)
	if err != nil {
		return nil, err
	}

	points := []models.ScoredPoint{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", models.ErrValidation, line, err)
		}
		if blank(record) {
			continue
		}

		ts, err := models.ParseTimestamp(cell(record, idx[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		actual, err := strconv.ParseFloat(strings.TrimSpace(cell(record, idx[1])), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: actual_rssi is not a number", models.ErrValidation, line)
		}
		predicted, err := strconv.ParseFloat(strings.TrimSpace(cell(record, idx[2])), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: predicted_rssi is not a number", models.ErrValidation, line)
		}
		anomaly, err := parseBool(cell(record, idx[3]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrValidation, line, err)
		}

		points = append(points, models.ScoredPoint{
			Timestamp:     ts,
			ActualRSSI:    actual,
			PredictedRSSI: predicted,
			IsAnomaly:     anomaly,
		})
	}
	return points, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv file is empty", models.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %v", models.ErrValidation, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// columnIndex находит позиции столбцов; отсутствующие перечисляются в ошибке
func columnIndex(header []string, names ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}

	idx := make([]int, len(names))
	var missing []string
	for i, name := range names {
		j, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", models.ErrValidation, strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("is_anomaly must be 0/1 or true/false, got %q", s)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
