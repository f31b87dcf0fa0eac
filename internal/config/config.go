// config реализует конфигурацию profiles-service: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища профилей.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Limits   LimitsConfig   `yaml:"limits"`
	Cache    CacheConfig    `yaml:"cache"`
	Statuses StatusesConfig `yaml:"statuses"`
	Sessions SessionsConfig `yaml:"sessions"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// TimeoutConfig — сервисные таймауты (общий дедлайн обработки запроса).
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE" env-default:"5s"`
}

// HTTPConfig — публичный REST API.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50095"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// MetricsConfig — отдельный HTTP для health/metrics.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"50096"`
}

// Addr возвращает адрес в формате host:port.
func (m MetricsConfig) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// DBConfig — настройки документного хранилища.
type DBConfig struct {
	// Driver: mongo (по умолчанию) или memory (локальный запуск без MongoDB).
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"mongo"`
	URL    string `yaml:"url" env:"DATABASE_URL"`
	// Transactions включает проверку ссылок и удаление статуса в одной транзакции.
	// Требует replica set.
	Transactions bool `yaml:"transactions" env:"DB_TRANSACTIONS" env-default:"false"`
}

// RedisConfig — хранилище состояния фильтров по сессиям.
// Пустой URL — состояние живёт в памяти процесса.
type RedisConfig struct {
	URL    string        `yaml:"url" env:"REDIS_URL"`
	Prefix string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"studio:filters:"`
	TTL    time.Duration `yaml:"ttl" env:"FILTERS_TTL" env-default:"720h"`
}

// LimitsConfig — лимиты постраничной выдачи.
type LimitsConfig struct {
	// page_size=0 -> берём Default; верхняя граница — Max.
	Default int32 `yaml:"default" env:"DEFAULT_PAGE_SIZE" env-default:"10"`
	Max     int32 `yaml:"max"     env:"MAX_PAGE_SIZE"     env-default:"100"`
}

// CacheConfig — кэш запросов.
type CacheConfig struct {
	// StaleTime — окно свежести; после него значение отдаётся и обновляется в фоне.
	StaleTime time.Duration `yaml:"stale_time" env:"CACHE_STALE_TIME" env-default:"30s"`
	// GCTime — записи без обращений дольше GCTime удаляются.
	GCTime time.Duration `yaml:"gc_time" env:"CACHE_GC_TIME" env-default:"5m"`
	// RefreshTimeout — дедлайн фонового обновления.
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"CACHE_REFRESH_TIMEOUT" env-default:"10s"`
	// MaxPageTokens — сколько курсоров страниц держит пейджер.
	MaxPageTokens int `yaml:"max_page_tokens" env:"CACHE_MAX_PAGE_TOKENS" env-default:"1024"`
}

// StatusesConfig — таксономия статусов.
type StatusesConfig struct {
	// RejectedID — статус, исключаемый из выдачи по умолчанию.
	RejectedID string `yaml:"rejected_id" env:"REJECTED_STATUS_ID" env-default:"rejected"`
	// SkipSeed отключает засев стандартных статусов в пустую коллекцию при старте.
	SkipSeed bool `yaml:"skip_seed" env:"SKIP_STATUS_SEED"`
}

// SessionsConfig — состояние сессий в памяти процесса (наблюдатели списка, менеджеры фильтров,
// мутации). Сессия без обращений дольше IdleTTL удаляется; 0 — без удаления.
// Фильтры в Redis живут по своему TTL независимо от этого.
type SessionsConfig struct {
	IdleTTL time.Duration `yaml:"idle_ttl" env:"SESSION_IDLE_TTL" env-default:"30m"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	candidate := path
	if candidate == "" {
		candidate = os.Getenv("CONFIG_PATH")
	}

	if candidate == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			candidate = "local.yaml"
		}
	}

	if candidate != "" {
		c, err := tryRead(candidate)
		if err != nil {
			return nil, err
		}

		if err := c.validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))

	switch c.DB.Driver {
	case DriverMongo:
		if c.DB.URL == "" {
			return fmt.Errorf("db.url is required for driver %q", DriverMongo)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("db.driver must be %q or %q", DriverMongo, DriverMemory)
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}

	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}

	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.Cache.StaleTime < 0 {
		return fmt.Errorf("cache.stale_time must be >= 0")
	}

	if c.Cache.GCTime > 0 && c.Cache.GCTime < c.Cache.StaleTime {
		return fmt.Errorf("cache.gc_time must be >= cache.stale_time")
	}

	if c.Cache.MaxPageTokens < 0 {
		return fmt.Errorf("cache.max_page_tokens must be >= 0")
	}

	if c.Sessions.IdleTTL < 0 {
		return fmt.Errorf("sessions.idle_ttl must be >= 0")
	}

	if strings.TrimSpace(c.Statuses.RejectedID) == "" {
		return fmt.Errorf("statuses.rejected_id is required")
	}

	return nil
}
