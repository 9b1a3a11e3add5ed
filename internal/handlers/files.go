package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rssi-anomaly/internal/analytics"
	"rssi-anomaly/internal/models"
	"rssi-anomaly/internal/table"
)

const (
	defaultTSColumn   = "timestamp"
	defaultRSSIColumn = "rssi"
)

// BatchPredict обрабатывает POST /batch-predict (multipart: file, rssi_column, ts_column, threshold)
func (h *Handler) BatchPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, fmt.Errorf("%w: upload exceeds %d bytes", models.ErrValidation, maxErr.Limit))
			return
		}
		h.writeError(w, fmt.Errorf("%w: expected multipart/form-data upload: %v", models.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: form field 'file' is required", models.ErrValidation))
		return
	}
	defer file.Close()

	opts, err := thresholdOption(r.FormValue("threshold"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	series, err := table.ReadSeries(file,
		valueOr(r.FormValue("ts_column"), defaultTSColumn),
		valueOr(r.FormValue("rssi_column"), defaultRSSIColumn))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.pipeline.Run(r.Context(), series, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.BatchResponse{
		TotalRecords:   len(series),
		ScoredRecords:  len(result.Points),
		AnomalyCount:   result.AnomalyCount(),
		SequenceLength: result.SequenceLength,
		Threshold:      result.Threshold,
		Predictions:    result.Points,
	})
}

// SavePredictions обрабатывает POST /save-predictions: читает input_file, пишет output_file
func (h *Handler) SavePredictions(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err))
		return
	}

	inputPath, err := table.Resolve(h.opts.DataDir, req.InputFile)
	if err != nil {
		h.writeError(w, fmt.Errorf("input_file: %w", err))
		return
	}
	outputPath, err := table.Resolve(h.opts.DataDir, req.OutputFile)
	if err != nil {
		h.writeError(w, fmt.Errorf("output_file: %w", err))
		return
	}

	in, err := table.Open(inputPath, req.InputFile)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer in.Close()

	series, err := table.ReadSeries(in,
		valueOr(req.TSColumn, defaultTSColumn),
		valueOr(req.RSSIColumn, defaultRSSIColumn))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.pipeline.Run(r.Context(), series, analytics.Options{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := table.WriteResultsFile(outputPath, req.OutputFile, result.Points); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info().
		Str("input_file", req.InputFile).
		Str("output_file", req.OutputFile).
		Int("records", len(result.Points)).
		Msg("predictions saved")

	writeJSON(w, http.StatusOK, models.SaveResponse{
		Status:       "success",
		OutputFile:   req.OutputFile,
		InputRecords: len(series),
		TotalRecords: len(result.Points),
		AnomalyCount: result.AnomalyCount(),
	})
}

// LoadData обрабатывает GET /load-data?file=...
func (h *Handler) LoadData(w http.ResponseWriter, r *http.Request) {
	name := valueOr(r.URL.Query().Get("file"), h.opts.ResultsFile)

	path, err := table.Resolve(h.opts.DataDir, name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	f, err := table.Open(path, name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer f.Close()

	records, err := table.ReadResults(f)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoadResponse{
		File:         name,
		TotalRecords: len(records),
		AnomalyCount: models.CountAnomalies(records),
		Records:      records,
	})
}

func valueOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
