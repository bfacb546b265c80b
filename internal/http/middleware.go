package httpapi

import (
	"net/http"
	"time"

	"wisefido-readmission/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	err    error // set by writeJSON when the response could not be encoded
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps h with request ids, access logging and metrics under route
func instrument(route string, h http.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		requestID := req.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, req)

		elapsed := time.Since(start)
		m.ObserveHTTP(route, req.Method, rec.status, elapsed)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		}
		if rec.err != nil {
			logger.Error("HTTP response failed", append(fields, zap.Error(rec.err))...)
		} else if rec.status >= http.StatusInternalServerError {
			logger.Warn("HTTP request failed", fields...)
		} else {
			logger.Debug("HTTP request", fields...)
		}
	})
}
