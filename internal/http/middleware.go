package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prms_http_requests_total",
			Help: "Total HTTP requests handled by PRMS",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prms_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// withObservability wraps next with access logging and Prometheus metrics.
func withObservability(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		path := normalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", elapsed),
		}
		switch {
		case rec.statusCode >= 500:
			logger.Error("HTTP request", fields...)
		case rec.statusCode >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	})
}

// normalizePath 将 ref_id 替换为 {id}，未知路径归为 other（控制指标基数）
func normalizePath(path string) string {
	switch path {
	case "/", "/records", "/add", "/healthz", "/metrics",
		"/api/v1/patients", "/api/v1/patients/export", "/api/v1/dashboard":
		return path
	}

	if strings.HasPrefix(path, "/edit/") {
		return "/edit/{id}"
	}
	const patientsPrefix = "/api/v1/patients/"
	if strings.HasPrefix(path, patientsPrefix) && strings.HasSuffix(path, "/status") {
		return "/api/v1/patients/{id}/status"
	}
	return "other"
}
