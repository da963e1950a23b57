// Пакет config — загрузка и валидация конфигурации Availability Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Availability Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- Catalog Query Service ---

	// Базовый URL API каталога (обязательный)
	CatalogURL string
	// Путь к CA-сертификату каталога (пустой — системный пул)
	CatalogCACertPath string
	// Таймаут запросов к каталогу (0 — без таймаута)
	CatalogTimeout time.Duration
	// Инстанс по умолчанию, если каталог не сообщает активный
	DefaultInstance string

	// --- Опрос ---

	// Интервал опроса контейнера в состоянии REPLICATING (по умолчанию 10s)
	PollInterval time.Duration
	// Размер индекса деталей файлов (по умолчанию 10000)
	FileIndexSize int

	// --- Мониторинг зависимостей ---

	// Включён ли мониторинг каталога через topologymetrics
	DephealthEnabled bool
	// Группа в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей (по умолчанию 15s)
	DephealthCheckInterval time.Duration
	// Путь health endpoint каталога
	CatalogHealthPath string
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AV_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("AV_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("AV_PORT: %w", err)
	}

	// AV_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("AV_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("AV_LOG_LEVEL: %w", err)
	}

	// AV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AV_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("AV_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("AV_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("AV_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("AV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Catalog Query Service ---

	// AV_CATALOG_URL — базовый URL API каталога (обязательный)
	cfg.CatalogURL, err = getEnvRequired("AV_CATALOG_URL")
	if err != nil {
		return nil, err
	}
	if parsed, perr := url.Parse(cfg.CatalogURL); perr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("AV_CATALOG_URL: некорректный URL %q", cfg.CatalogURL)
	}

	cfg.CatalogCACertPath = os.Getenv("AV_CATALOG_CA_CERT_PATH")

	// AV_CATALOG_TIMEOUT — по умолчанию без таймаута: зависший запрос тормозит только свой контейнер
	cfg.CatalogTimeout, err = getEnvDuration("AV_CATALOG_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("AV_CATALOG_TIMEOUT: %w", err)
	}
	if cfg.CatalogTimeout < 0 {
		return nil, fmt.Errorf("AV_CATALOG_TIMEOUT: значение должно быть >= 0")
	}

	cfg.DefaultInstance = os.Getenv("AV_DEFAULT_INSTANCE")

	// --- Опрос ---

	// AV_POLL_INTERVAL — интервал опроса (по умолчанию 10s)
	cfg.PollInterval, err = getEnvDurationPositive("AV_POLL_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_POLL_INTERVAL: %w", err)
	}

	// AV_FILE_INDEX_SIZE — размер индекса деталей файлов (по умолчанию 10000)
	cfg.FileIndexSize, err = getEnvInt("AV_FILE_INDEX_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("AV_FILE_INDEX_SIZE: %w", err)
	}
	if cfg.FileIndexSize <= 0 {
		return nil, fmt.Errorf("AV_FILE_INDEX_SIZE: значение должно быть > 0")
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthEnabled, err = getEnvBool("AV_DEPHEALTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("AV_DEPHEALTH_ENABLED: %w", err)
	}

	cfg.DephealthGroup = getEnvDefault("AV_DEPHEALTH_GROUP", "artstore")

	cfg.DephealthCheckInterval, err = getEnvDurationPositive("AV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.CatalogHealthPath = getEnvDefault("AV_CATALOG_HEALTH_PATH", "/health")

	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
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

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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
