// metrics.go — Prometheus HTTP метрики фасада Admin Client.
// Регистрирует метрики: ac_http_requests_total, ac_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ac_http_requests_total",
			Help: "Общее количество HTTP-запросов к Admin Client",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ac_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Admin Client в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем идентификаторы на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификаторы в сегментах пути на {id}
// для предотвращения взрывного роста кардинальности метрик.
// /api/v1/question-papers/qp-42/pdf → /api/v1/question-papers/{id}/pdf
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/session",
		"/api/v1/question-papers",
		"/api/v1/books",
		"/api/v1/colleges",
		"/api/v1/students",
		"/api/v1/events":
		return path
	}

	// Динамические пути с идентификатором ресурса
	prefixes := []struct {
		prefix string
		result string
	}{
		{"/api/v1/question-papers/", "/api/v1/question-papers/{id}"},
		{"/api/v1/books/", "/api/v1/books/{id}"},
	}

	for _, p := range prefixes {
		if !strings.HasPrefix(path, p.prefix) || len(path) == len(p.prefix) {
			continue
		}
		rest := path[len(p.prefix):]
		// Идентификатор присваивает сервер, длина не фиксирована:
		// суффикс ищем по следующему слэшу.
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			switch rest[idx:] {
			case "/pdf":
				return p.result + "/pdf"
			case "/cover":
				return p.result + "/cover"
			}
		}
		return p.result
	}

	return path
}
