package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Postgres.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.Redis.OpTimeout)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 5, cfg.Search.DefaultSuggestionLimit)
	assert.Equal(t, "portal-analytics", cfg.Kafka.Topics.AnalyticsEvents)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  requestTimeout: 2s
  allowOrigins: ["https://portal.example"]
postgres:
  host: db
redis:
  addr: cache:6379
  cacheTTL: 30s
  opTimeout: 250ms
search:
  defaultLimit: 5
  maxResults: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"https://portal.example"}, cfg.Server.AllowOrigins)
	assert.True(t, cfg.Postgres.Enabled())
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.OpTimeout)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 25, cfg.Search.MaxSuggestions)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORTAL_SERVER_PORT", "7000")
	t.Setenv("PORTAL_SERVER_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PORTAL_POSTGRES_HOST", "pg")
	t.Setenv("PORTAL_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORTAL_REDIS_ADDR", "redis:6379")
	t.Setenv("PORTAL_CATALOG_SEED_FILE", "/data/catalog.yaml")
	t.Setenv("PORTAL_LOGGING_LEVEL", "debug")
	t.Setenv("PORTAL_METRICS_PORT", "not-a-port")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
	assert.Equal(t, "pg", cfg.Postgres.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "/data/catalog.yaml", cfg.Catalog.SeedFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			want: "reading config file",
		},
		{
			name: "bad yaml",
			path: func(t *testing.T) string { return writeConfig(t, "server: [") },
			want: "parsing config file",
		},
		{
			name: "max below default",
			path: func(t *testing.T) string {
				return writeConfig(t, "search:\n  defaultLimit: 10\n  maxResults: 5\n")
			},
			want: "invalid search limits",
		},
		{
			name: "zero suggestion default",
			path: func(t *testing.T) string {
				return writeConfig(t, "search:\n  defaultSuggestionLimit: 0\n")
			},
			want: "invalid suggestion limits",
		},
		{
			name: "zero redis op timeout",
			path: func(t *testing.T) string {
				return writeConfig(t, "redis:\n  opTimeout: 0s\n")
			},
			want: "invalid redis opTimeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "portal", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=portal sslmode=disable", p.DSN())
}
