package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  name: dbgate-test
  transport: http
  address: ":9090"
  log_level: debug

connections:
  analytics:
    type: postgresql
    host: analytics.internal
    port: 5433
    database: metrics
    user: reader
    password: s3cret
    read_only: true
  cache:
    type: redis
    host: cache.internal
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dbgate-test", cfg.Server.Name)
	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "1.0.0", cfg.Server.Version, "unset fields get defaults")

	analytics, ok := cfg.Lookup("analytics")
	require.True(t, ok)
	assert.Equal(t, "postgresql", analytics.Type)
	assert.Equal(t, 5433, analytics.Port)
	assert.Equal(t, "s3cret", analytics.Password)
	assert.True(t, analytics.ReadOnly)

	assert.Equal(t, []string{"analytics", "cache"}, cfg.Names())
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("DBGATE_TEST_PASSWORD", "from-env")
	t.Setenv("DBGATE_TEST_HOST", "db.example.com")

	path := writeConfig(t, `
connections:
  main:
    type: postgresql
    host: ${DBGATE_TEST_HOST}
    database: app
    user: svc
    password: ${DBGATE_TEST_PASSWORD}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	main, ok := cfg.Lookup("main")
	require.True(t, ok)
	assert.Equal(t, "db.example.com", main.Host)
	assert.Equal(t, "from-env", main.Password)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
connections:
  main:
    type: redis
    host: cache
    password: ${DBGATE_TEST_DOES_NOT_EXIST}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	main, _ := cfg.Lookup("main")
	assert.Empty(t, main.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "mcp-dbgate", cfg.Server.Name)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Names())
}

func TestLookup_Miss(t *testing.T) {
	cfg := Default()
	_, ok := cfg.Lookup("nope")
	assert.False(t, ok)
}
