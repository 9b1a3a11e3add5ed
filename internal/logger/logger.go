package logger

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger обертка над zerolog
type Logger struct{ zerolog.Logger }

// New создает JSON логгер в stdout с указанным уровнем
func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// FileOptions ротация файла журнала
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewWithFile пишет в stdout и дополнительно в файл с ротацией.
// Пустой Path равносилен New.
func NewWithFile(level string, file FileOptions) (*Logger, io.Closer) {
	if file.Path == "" {
		return New(level), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   true,
	}
	return NewWithWriter(io.MultiWriter(os.Stdout, rotator), level), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewWithWriter создает логгер, пишущий в w
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	z := zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	return &Logger{z}
}

// Nop логгер, который ничего не пишет
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// HTTPLogger middleware журнала запросов
func (l *Logger) HTTPLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}
