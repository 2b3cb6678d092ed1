// config — источник загрузки конфигурации dashboard-bff и сессионного слоя.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
//
// После чтения файла поверх значений из YAML всегда накладываются ENV-переменные.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища учётных данных.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Backend  BackendConfig `yaml:"backend"`
	Storage  StorageConfig `yaml:"storage"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты.
//   - Service — общий дедлайн входящего запроса к BFF;
//   - Auth — фиксированный клиентский таймаут login/register;
//   - Upstream — таймаут транспорта по умолчанию для прочих вызовов бэкенда (0 — без таймаута).
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service"  env:"SERVICE"          env-default:"15s"`
	Auth     time.Duration `yaml:"auth"     env:"AUTH_TIMEOUT"     env-default:"5s"`
	Upstream time.Duration `yaml:"upstream" env:"UPSTREAM_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — HTTP-сервер BFF.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
	// AllowedOrigins — источники, которым разрешено подключаться к /session/events.
	// Пустой список — только same-origin.
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS"`
	// MaxBodyBytes — предел тела запроса, проксируемого на /api/*; 0 — без предела.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"10485760"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// BackendConfig — адрес бэкенда анализа и пути его auth-эндпойнтов.
type BackendConfig struct {
	BaseURL   string      `yaml:"base_url"   env:"BACKEND_BASE_URL" env-default:"http://localhost:5000"`
	UserAgent string      `yaml:"user_agent" env:"BACKEND_USER_AGENT" env-default:"dashboard-bff"`
	Paths     PathsConfig `yaml:"paths"`
}

// PathsConfig — канонический набор путей; переопределяется, если бэкенд развёрнут иначе.
type PathsConfig struct {
	Login          string `yaml:"login"           env:"PATH_LOGIN"           env-default:"/auth/login"`
	Register       string `yaml:"register"        env:"PATH_REGISTER"        env-default:"/auth/register"`
	Refresh        string `yaml:"refresh"         env:"PATH_REFRESH"         env-default:"/auth/refresh"`
	Check          string `yaml:"check"           env:"PATH_CHECK"           env-default:"/auth/check"`
	Logout         string `yaml:"logout"          env:"PATH_LOGOUT"          env-default:"/api/logout"`
	User           string `yaml:"user"            env:"PATH_USER"            env-default:"/api/user"`
	ChangePassword string `yaml:"change_password" env:"PATH_CHANGE_PASSWORD" env-default:"/api/change_password"`
}

// URL склеивает базовый адрес бэкенда и путь.
func (b BackendConfig) URL(path string) string {
	return strings.TrimRight(b.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// StorageConfig — хранилище учётных данных.
// Scope — «origin»: все ключи сессии живут внутри него.
type StorageConfig struct {
	Driver      string `yaml:"driver"       env:"STORAGE_DRIVER" env-default:"memory"`
	Scope       string `yaml:"scope"        env:"STORAGE_SCOPE"  env-default:"default"`
	RedisURL    string `yaml:"redis_url"    env:"REDIS_URL"`
	RedisPrefix string `yaml:"redis_prefix" env:"REDIS_PREFIX"   env-default:"dashboard:session:"`
	DatabaseURL string `yaml:"db_url"       env:"DATABASE_URL"`
	MongoURL    string `yaml:"mongo_url"    env:"MONGO_URL"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

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

		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет согласованность значений, которые cleanenv проверить не может:
// корректный base_url и наличие адреса для выбранного драйвера хранилища.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q", c.Backend.BaseURL)
	}

	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative")
	}

	if c.Timeouts.Auth <= 0 {
		return fmt.Errorf("timeouts.auth must be positive")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for driver %q", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.db_url is required for driver %q", c.Storage.Driver)
		}
	case DriverMongo:
		if c.Storage.MongoURL == "" {
			return fmt.Errorf("storage.mongo_url is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	return nil
}
