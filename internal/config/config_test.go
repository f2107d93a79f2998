package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения с очисткой после теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"AC_API_URL": "https://api.edustore.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8030 {
		t.Errorf("Port = %d, ожидается 8030", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.APIURL != "https://api.edustore.lan" {
		t.Errorf("APIURL = %q, ожидается https://api.edustore.lan", cfg.APIURL)
	}
	if cfg.APIToken != "" {
		t.Errorf("APIToken = %q, ожидается пустой", cfg.APIToken)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, ожидается 30s", cfg.HTTPTimeout)
	}
	if cfg.UploadTimeout != 120*time.Second {
		t.Errorf("UploadTimeout = %v, ожидается 120s", cfg.UploadTimeout)
	}
	if cfg.GetRetryAttempts != 3 {
		t.Errorf("GetRetryAttempts = %d, ожидается 3", cfg.GetRetryAttempts)
	}
	if cfg.GetRetryBackoff != 250*time.Millisecond {
		t.Errorf("GetRetryBackoff = %v, ожидается 250ms", cfg.GetRetryBackoff)
	}
	if cfg.PermCacheSize != 256 {
		t.Errorf("PermCacheSize = %d, ожидается 256", cfg.PermCacheSize)
	}
	if cfg.PermCacheTTL != 5*time.Minute {
		t.Errorf("PermCacheTTL = %v, ожидается 5m", cfg.PermCacheTTL)
	}
	if cfg.SSEKeepalive != 15*time.Second {
		t.Errorf("SSEKeepalive = %v, ожидается 15s", cfg.SSEKeepalive)
	}
	if cfg.DephealthGroup != "edustore" {
		t.Errorf("DephealthGroup = %q, ожидается edustore", cfg.DephealthGroup)
	}
	if cfg.DephealthCheckInterval != 30*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 30s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_PORT"] = "8035"
	envs["AC_LOG_LEVEL"] = "debug"
	envs["AC_LOG_FORMAT"] = "text"
	envs["AC_API_TOKEN"] = "pre-provisioned-token"
	envs["AC_HTTP_TIMEOUT"] = "10s"
	envs["AC_UPLOAD_TIMEOUT"] = "5m"
	envs["AC_GET_RETRY_ATTEMPTS"] = "5"
	envs["AC_GET_RETRY_BACKOFF"] = "1s"
	envs["AC_PERM_CACHE_SIZE"] = "64"
	envs["AC_PERM_CACHE_TTL"] = "30s"
	envs["AC_SSE_KEEPALIVE"] = "5s"
	envs["AC_DEPHEALTH_GROUP"] = "edustore-test"
	envs["AC_DEPHEALTH_CHECK_INTERVAL"] = "1m"
	envs["AC_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8035 {
		t.Errorf("Port = %d, ожидается 8035", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.APIToken != "pre-provisioned-token" {
		t.Errorf("APIToken = %q, ожидается pre-provisioned-token", cfg.APIToken)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, ожидается 10s", cfg.HTTPTimeout)
	}
	if cfg.UploadTimeout != 5*time.Minute {
		t.Errorf("UploadTimeout = %v, ожидается 5m", cfg.UploadTimeout)
	}
	if cfg.GetRetryAttempts != 5 {
		t.Errorf("GetRetryAttempts = %d, ожидается 5", cfg.GetRetryAttempts)
	}
	if cfg.GetRetryBackoff != time.Second {
		t.Errorf("GetRetryBackoff = %v, ожидается 1s", cfg.GetRetryBackoff)
	}
	if cfg.PermCacheSize != 64 {
		t.Errorf("PermCacheSize = %d, ожидается 64", cfg.PermCacheSize)
	}
	if cfg.PermCacheTTL != 30*time.Second {
		t.Errorf("PermCacheTTL = %v, ожидается 30s", cfg.PermCacheTTL)
	}
	if cfg.SSEKeepalive != 5*time.Second {
		t.Errorf("SSEKeepalive = %v, ожидается 5s", cfg.SSEKeepalive)
	}
	if cfg.DephealthGroup != "edustore-test" {
		t.Errorf("DephealthGroup = %q, ожидается edustore-test", cfg.DephealthGroup)
	}
	if cfg.DephealthCheckInterval != time.Minute {
		t.Errorf("DephealthCheckInterval = %v, ожидается 1m", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingAPIURL(t *testing.T) {
	os.Unsetenv("AC_API_URL")

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при отсутствии AC_API_URL")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ниже диапазона", "8029"},
		{"выше диапазона", "8040"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["AC_PORT"] = tt.value
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при AC_PORT=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_LOG_LEVEL"] = "verbose"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при AC_LOG_LEVEL=verbose")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_LOG_FORMAT"] = "xml"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при AC_LOG_FORMAT=xml")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_HTTP_TIMEOUT"] = "abc"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при AC_HTTP_TIMEOUT=abc")
	}
}

func TestLoad_InvalidRetryAttempts(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"слишком мало", "0"},
		{"слишком много", "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["AC_GET_RETRY_ATTEMPTS"] = tt.value
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при AC_GET_RETRY_ATTEMPTS=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidPermCacheSize(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_PERM_CACHE_SIZE"] = "0"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при AC_PERM_CACHE_SIZE=0")
	}
}

func TestLoad_APIURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["AC_API_URL"] = "https://api.edustore.lan/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.APIURL != "https://api.edustore.lan" {
		t.Errorf("APIURL = %q, ожидается без trailing slash", cfg.APIURL)
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}
