// Пакет config — загрузка и валидация конфигурации админ-клиента
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации админ-клиента.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8030-8039)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- REST API Edustore ---

	// Базовый URL REST API (например, https://api.edustore.lan)
	APIURL string
	// Заранее выданный bearer-токен (опционально, вместо логина)
	APIToken string
	// Таймаут обычных запросов к API
	HTTPTimeout time.Duration
	// Таймаут загрузки файлов
	UploadTimeout time.Duration
	// Число попыток GET-запросов при сетевых сбоях
	GetRetryAttempts int
	// Пауза между попытками GET-запросов
	GetRetryBackoff time.Duration

	// --- Кэш решений о правах ---

	// Максимальное число записей LRU-кэша
	PermCacheSize int
	// Время жизни записи кэша
	PermCacheTTL time.Duration

	// --- SSE ---

	// Интервал keepalive-комментариев SSE-потока
	SSEKeepalive time.Duration

	// --- Dephealth ---

	// Группа топологии в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AC_PORT — порт HTTP-сервера (по умолчанию 8030)
	cfg.Port, err = getEnvInt("AC_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("AC_PORT: %w", err)
	}
	if cfg.Port < 8030 || cfg.Port > 8039 {
		return nil, fmt.Errorf("AC_PORT: значение %d вне допустимого диапазона 8030-8039", cfg.Port)
	}

	// AC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AC_LOG_LEVEL: %w", err)
	}

	// AC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- REST API Edustore ---

	// AC_API_URL — обязательный
	cfg.APIURL, err = getEnvRequired("AC_API_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	// AC_API_TOKEN — заранее выданный токен (опционально)
	cfg.APIToken = getEnvDefault("AC_API_TOKEN", "")

	// AC_HTTP_TIMEOUT — таймаут обычных запросов (по умолчанию 30s)
	cfg.HTTPTimeout, err = getEnvDuration("AC_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AC_HTTP_TIMEOUT: %w", err)
	}

	// AC_UPLOAD_TIMEOUT — таймаут загрузки файлов (по умолчанию 120s)
	cfg.UploadTimeout, err = getEnvDuration("AC_UPLOAD_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AC_UPLOAD_TIMEOUT: %w", err)
	}

	// AC_GET_RETRY_ATTEMPTS — попытки GET при сетевых сбоях (по умолчанию 3)
	cfg.GetRetryAttempts, err = getEnvInt("AC_GET_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("AC_GET_RETRY_ATTEMPTS: %w", err)
	}
	if cfg.GetRetryAttempts < 1 || cfg.GetRetryAttempts > 10 {
		return nil, fmt.Errorf("AC_GET_RETRY_ATTEMPTS: значение %d вне допустимого диапазона 1-10", cfg.GetRetryAttempts)
	}

	// AC_GET_RETRY_BACKOFF — пауза между попытками (по умолчанию 250ms)
	cfg.GetRetryBackoff, err = getEnvDuration("AC_GET_RETRY_BACKOFF", 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("AC_GET_RETRY_BACKOFF: %w", err)
	}

	// --- Кэш решений о правах ---

	// AC_PERM_CACHE_SIZE — размер LRU-кэша (по умолчанию 256)
	cfg.PermCacheSize, err = getEnvInt("AC_PERM_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("AC_PERM_CACHE_SIZE: %w", err)
	}
	if cfg.PermCacheSize < 1 {
		return nil, fmt.Errorf("AC_PERM_CACHE_SIZE: значение %d должно быть положительным", cfg.PermCacheSize)
	}

	// AC_PERM_CACHE_TTL — время жизни записи (по умолчанию 5m)
	cfg.PermCacheTTL, err = getEnvDuration("AC_PERM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AC_PERM_CACHE_TTL: %w", err)
	}

	// --- SSE ---

	// AC_SSE_KEEPALIVE — интервал keepalive (по умолчанию 15s)
	cfg.SSEKeepalive, err = getEnvDuration("AC_SSE_KEEPALIVE", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AC_SSE_KEEPALIVE: %w", err)
	}

	// --- Dephealth ---

	// AC_DEPHEALTH_GROUP — группа топологии (по умолчанию edustore)
	cfg.DephealthGroup = getEnvDefault("AC_DEPHEALTH_GROUP", "edustore")

	// AC_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 30s)
	cfg.DephealthCheckInterval, err = getEnvDuration("AC_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// AC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("AC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AC_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
