// Точка входа админ-клиента Edustore — фасад администратора каталога.
// Загружает конфигурацию, создаёт клиент REST API Edustore, сервисный слой
// (конвейер мутаций, справочники, сессия оператора), запускает
// topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/arturkryukov/edustore/admin-client/internal/api/handlers"
	"github.com/arturkryukov/edustore/admin-client/internal/api/middleware"
	"github.com/arturkryukov/edustore/admin-client/internal/collection"
	"github.com/arturkryukov/edustore/admin-client/internal/config"
	"github.com/arturkryukov/edustore/admin-client/internal/esclient"
	"github.com/arturkryukov/edustore/admin-client/internal/server"
	"github.com/arturkryukov/edustore/admin-client/internal/service"
	"github.com/arturkryukov/edustore/admin-client/internal/session"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Админ-клиент запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("api_url", cfg.APIURL),
	)

	// Предупреждение о дефолтном значении topologymetrics
	if os.Getenv("AC_DEPHEALTH_GROUP") == "" {
		logger.Warn("AC_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Кэш решений о правах и реактивные коллекции каталога
	accessSvc := service.NewAccessService(cfg.PermCacheSize, cfg.PermCacheTTL, logger)
	stores := collection.NewSet(logger)

	// 4. Менеджер сессии оператора.
	// Кэш прав сбрасывается при каждой смене сессии.
	sessions := session.NewManager(accessSvc, logger)

	// 5. Клиент REST API Edustore.
	// Bearer-токен берётся из текущей сессии; ответ 401 аннулирует
	// сессию ровно один раз.
	client, err := esclient.New(esclient.Config{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.HTTPTimeout,
		UploadTimeout: cfg.UploadTimeout,
		RetryAttempts: cfg.GetRetryAttempts,
		RetryBackoff:  cfg.GetRetryBackoff,
	}, sessions.Token, sessions.HandleAuthFailure, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента REST API", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Заранее выданный токен (опционально): сессия устанавливается
	// без логина. Непригодный токен не фатален — оператор войдёт сам.
	if cfg.APIToken != "" {
		if _, tokenErr := sessions.Establish(cfg.APIToken); tokenErr != nil {
			logger.Warn("AC_API_TOKEN отклонён", slog.String("error", tokenErr.Error()))
		} else {
			logger.Info("Сессия установлена из AC_API_TOKEN")
		}
	}

	// 7. Сервисный слой
	pipelineSvc := service.NewSubmitService(client, accessSvc, stores, logger)
	directorySvc := service.NewDirectoryService(client, accessSvc, logger)

	// 8. topologymetrics — мониторинг зависимости Edustore API
	ctx := context.Background()
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"admin-client",
		cfg.DephealthGroup,
		cfg.APIURL,
		"", // health path по умолчанию
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. Health handler: readiness опирается на мониторинг зависимостей
	healthHandler := handlers.NewHealthHandler(nil)
	if dephealthSvc != nil {
		healthHandler = handlers.NewHealthHandler(dephealthSvc)
	}

	// 10. API handler и middleware сессии
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		pipelineSvc,
		directorySvc,
		sessions,
		client,
		stores,
		cfg.SSEKeepalive,
		logger,
	)
	sessionAuth := middleware.NewSessionAuth(sessions)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, sessionAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач и коллекций
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	stores.DropAll()

	logger.Info("Админ-клиент остановлен")
}
