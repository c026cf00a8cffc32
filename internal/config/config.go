// Пакет config — загрузка и валидация конфигурации CDR Monitor
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

// Config содержит все параметры конфигурации CDR Monitor.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Сервис CDR (backend) ---

	// Базовый URL сервиса CDR
	CDRURL string
	// Путь к CA-сертификату для TLS-соединений с сервисом CDR (опционально)
	CDRCACertPath string
	// Статический bearer-токен для запросов к сервису CDR (опционально)
	CDRToken string

	// --- Цикл обновления ---

	// Интервал периодического обновления набора записей
	RefreshInterval time.Duration
	// Время видимости транзиентного сообщения об ошибке
	AlertTTL time.Duration
	// Интервал отправки SSE-обновлений presentation-слою
	SSEInterval time.Duration

	// --- Мониторинг зависимостей (topologymetrics) ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- JWT (опционально; auth включается, если задан JWKS URL) ---

	// URL JWKS endpoint (пусто — API без аутентификации)
	JWTJWKSURL string
	// Ожидаемый issuer JWT (пусто — issuer не проверяется)
	JWTIssuer string

	// --- Маппинг групп → ролей ---

	// Группы IdP, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы IdP, дающие роль readonly (через запятую)
	RoleReadonlyGroups []string

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

	// CM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("CM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("CM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Сервис CDR ---

	// CM_CDR_URL — обязательный
	cfg.CDRURL, err = getEnvRequired("CM_CDR_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.CDRURL = strings.TrimRight(cfg.CDRURL, "/")

	// CM_CDR_CA_CERT_PATH — путь к CA-сертификату сервиса CDR (опционально)
	cfg.CDRCACertPath = getEnvDefault("CM_CDR_CA_CERT_PATH", "")

	// CM_CDR_TOKEN — статический bearer-токен (опционально)
	cfg.CDRToken = getEnvDefault("CM_CDR_TOKEN", "")

	// --- Цикл обновления ---

	// CM_REFRESH_INTERVAL — интервал обновления набора записей (по умолчанию 20s)
	cfg.RefreshInterval, err = getEnvDuration("CM_REFRESH_INTERVAL", 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_REFRESH_INTERVAL: %w", err)
	}
	if cfg.RefreshInterval < time.Second {
		return nil, fmt.Errorf("CM_REFRESH_INTERVAL: значение %s меньше минимального 1s", cfg.RefreshInterval)
	}

	// CM_ALERT_TTL — время видимости сообщения об ошибке (по умолчанию 8s)
	cfg.AlertTTL, err = getEnvDuration("CM_ALERT_TTL", 8*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_ALERT_TTL: %w", err)
	}

	// CM_SSE_INTERVAL — интервал SSE-обновлений (по умолчанию 5s)
	cfg.SSEInterval, err = getEnvDuration("CM_SSE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SSE_INTERVAL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// CM_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию cdrmon)
	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "cdrmon")

	// CM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- JWT ---

	// CM_JWT_JWKS_URL — URL JWKS endpoint (пусто — auth отключён)
	cfg.JWTJWKSURL = getEnvDefault("CM_JWT_JWKS_URL", "")

	// CM_JWT_ISSUER — ожидаемый issuer JWT (опционально)
	cfg.JWTIssuer = getEnvDefault("CM_JWT_ISSUER", "")

	// --- Маппинг групп → ролей ---

	// CM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "cdrmon-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("CM_ROLE_ADMIN_GROUPS", "cdrmon-admins"))

	// CM_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "cdrmon-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("CM_ROLE_READONLY_GROUPS", "cdrmon-viewers"))

	// --- Graceful shutdown ---

	// CM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
