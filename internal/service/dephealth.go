// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Клиент зависит от единственного внешнего сервиса — Edustore API.
// HTTP checker опрашивает его health endpoint; состояние питает
// readiness-проверку фасада и метрики топологии:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Edustore API
	"github.com/prometheus/client_golang/prometheus"
)

// Имя зависимости Edustore API в метриках топологии.
const apiDependencyName = "edustore-api"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения (e.g. "admin-client")
//   - group — имя группы в метриках (AC_DEPHEALTH_GROUP)
//   - apiURL — базовый URL Edustore API
//   - healthPath — путь health endpoint API
//   - checkInterval — интервал проверки (AC_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	apiURL string,
	healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, apiURL, healthPath, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	apiURL string,
	healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, apiURL, healthPath, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	serviceID string,
	group string,
	apiURL string,
	healthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if healthPath == "" {
		healthPath = "/health"
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// Edustore API — единственная зависимость, без неё клиент
		// не выполняет ни одной операции каталога.
		dephealth.HTTP(apiDependencyName,
			dephealth.FromURL(apiURL),
			dephealth.WithHTTPHealthPath(healthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (Edustore API)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// APIHealthy возвращает true, если Edustore API доступен.
// Health() возвращает ключи формата "dependency:host:port",
// поэтому статус ищется по префиксу имени зависимости.
func (ds *DephealthService) APIHealthy() bool {
	for key, ok := range ds.dh.Health() {
		if key == apiDependencyName || strings.HasPrefix(key, apiDependencyName+":") {
			return ok
		}
	}
	return false
}
