// health.go — обработчики health endpoints админ-клиента.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (REST API Edustore доступен)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/edustore/admin-client/internal/config"
)

// APIChecker — интерфейс проверки доступности REST API Edustore.
type APIChecker interface {
	// APIHealthy — true, если последняя проверка зависимости прошла.
	APIHealthy() bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	apiChecker  APIChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// apiChecker может быть nil — readiness тогда возвращает fail.
func NewHealthHandler(apiChecker APIChecker) *HealthHandler {
	return &HealthHandler{
		apiChecker:  apiChecker,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		API healthCheckResult `json:"edustore_api"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "admin-client",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Проверяет доступность REST API Edustore.
// Возвращает 200 (ok) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "admin-client",
	}

	switch {
	case h.apiChecker == nil:
		resp.Checks.API = healthCheckResult{Status: "fail", Message: "проверка не инициализирована"}
	case h.apiChecker.APIHealthy():
		resp.Checks.API = healthCheckResult{Status: "ok"}
	default:
		resp.Checks.API = healthCheckResult{Status: "fail", Message: "REST API недоступен"}
	}
	resp.Status = resp.Checks.API.Status

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "fail" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
