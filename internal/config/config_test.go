package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile — утилита записи временного файла конфигурации.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

// chdir — смена текущего рабочего каталога с авто-возвратом.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sampleYAML = `
env: "prod"
http:
  host: "0.0.0.0"
  port: "8080"
  allowed_origins: ["http://localhost:3000"]
backend:
  base_url: "http://backend:5000/"
  user_agent: "bff-test"
  paths:
    login: "/api/login"
    register: "/api/register"
storage:
  driver: "redis"
  scope: "tab-1"
  redis_url: "redis://localhost:6379/0"
timeouts:
  service: "3s"
  auth: "2s"
  upstream: "7s"
`

const minimalYAML = `
env: "stage"
`

const brokenYAML = `
env: [unclosed
`

func TestHTTPConfig_Addr(t *testing.T) {
	t.Parallel()
	cfg := HTTPConfig{Host: "0.0.0.0", Port: "8080"}
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestBackendConfig_URL_JoinsSlashes(t *testing.T) {
	t.Parallel()

	b := BackendConfig{BaseURL: "http://h:1/"}
	require.Equal(t, "http://h:1/auth/login", b.URL("/auth/login"))
	require.Equal(t, "http://h:1/auth/login", b.URL("auth/login"))

	b.BaseURL = "http://h:1/prefix"
	require.Equal(t, "http://h:1/prefix/api/user", b.URL("/api/user"))
}

func TestLoad_WithExplicitPath_OK(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "8080", cfg.HTTP.Port)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowedOrigins)

	require.Equal(t, "http://backend:5000/", cfg.Backend.BaseURL)
	require.Equal(t, "bff-test", cfg.Backend.UserAgent)
	require.Equal(t, "/api/login", cfg.Backend.Paths.Login)
	require.Equal(t, "/api/register", cfg.Backend.Paths.Register)
	// Не указанные в YAML пути берутся из дефолтов.
	require.Equal(t, "/auth/refresh", cfg.Backend.Paths.Refresh)
	require.Equal(t, "/auth/check", cfg.Backend.Paths.Check)
	require.Equal(t, "/api/logout", cfg.Backend.Paths.Logout)

	require.Equal(t, DriverRedis, cfg.Storage.Driver)
	require.Equal(t, "tab-1", cfg.Storage.Scope)
	require.Equal(t, "dashboard:session:", cfg.Storage.RedisPrefix)

	require.Equal(t, 3*time.Second, cfg.Timeouts.Service)
	require.Equal(t, 2*time.Second, cfg.Timeouts.Auth)
	require.Equal(t, 7*time.Second, cfg.Timeouts.Upstream)
}

func TestLoad_Defaults_FromMinimalYAML(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, t.TempDir(), "min.yaml", minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "stage", cfg.Env)
	require.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.Equal(t, "default", cfg.Storage.Scope)
	require.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeouts.Auth)
	require.EqualValues(t, 10<<20, cfg.HTTP.MaxBodyBytes)
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, t.TempDir(), "broken.yaml", brokenYAML))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_Validate_Errors(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		yaml string
		want string
	}{
		{"bad_base_url", "backend: { base_url: \"not a url\" }", "invalid backend.base_url"},
		{"unknown_driver", "storage: { driver: \"sqlite\" }", "unknown storage.driver"},
		{"redis_without_url", "storage: { driver: \"redis\" }", "storage.redis_url is required"},
		{"postgres_without_url", "storage: { driver: \"postgres\" }", "storage.db_url is required"},
		{"mongo_without_url", "storage: { driver: \"mongo\" }", "storage.mongo_url is required"},
		{"negative_body_limit", "http: { max_body_bytes: -1 }", "http.max_body_bytes must not be negative"},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(writeFile(t, t.TempDir(), "c.yaml", tc.yaml))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_WithCONFIG_PATH_OK(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "from_env_path.yaml", minimalYAML)
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stage", cfg.Env)
}

func TestLoad_WithLocalYAML_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, ".", "local.yaml", sampleYAML)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "tab-1", cfg.Storage.Scope)
}

// Явный путь важнее CONFIG_PATH и local.yaml.
func TestLoad_Priority_ExplicitWinsOverEnvAndLocal(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	explicit := writeFile(t, dir, "explicit.yaml", `env: "prod"`)
	t.Setenv("CONFIG_PATH", writeFile(t, dir, "bad.yaml", brokenYAML))
	writeFile(t, ".", "local.yaml", `env: "local"`)

	cfg, err := Load(explicit)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
}

func TestLoad_EnvOverlay_OverridesValuesFromFile(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	t.Setenv("HTTP_PORT", "18080")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("STORAGE_SCOPE", "tab-2")
	t.Setenv("AUTH_TIMEOUT", "1s")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "18080", cfg.HTTP.Port)
	require.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	require.Equal(t, "tab-2", cfg.Storage.Scope)
	require.Equal(t, time.Second, cfg.Timeouts.Auth)
}

func TestLoad_EnvOnly_OK(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	t.Setenv("ENV", "dev")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, DriverPostgres, cfg.Storage.Driver)
	require.Equal(t, "postgres://u:p@localhost:5432/db", cfg.Storage.DatabaseURL)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
