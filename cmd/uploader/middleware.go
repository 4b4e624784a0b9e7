package main

import (
	"log/slog"
	"net/http"
	"time"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// requestLogger logs one line per request once the handler returns.
func requestLogger(logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next(sw, r)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int64("bytes_out", sw.bytes),
			)
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// RESPONSE WRITER

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(data)
	w.bytes += int64(n)
	return n, err
}

// Flush passes through, so that event streams are not buffered
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
