package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3061", cfg.Server.Port)
	assert.Equal(t, "SYSDBA", cfg.Firebird.User)
	assert.Equal(t, 3050, cfg.Firebird.DefaultPort)
	assert.True(t, cfg.Firebird.LowercaseKeys)
	assert.Equal(t, 60*time.Second, cfg.Firebird.QueryTimeout)
	assert.Equal(t, "fs", cfg.Storage.CatalogBackend)
	assert.Equal(t, 2*time.Minute, cfg.Generator.Timeout)
	assert.Equal(t, int64(64), cfg.Limits.MaxSessions)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "8080"
firebird:
  default_port: 3051
  query_timeout: 5s
generator:
  executable_path: "/opt/docgen/docgen"
  env:
    - "LANG=C"
storage:
  catalog_backend: "minio"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CRMGW_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3051, cfg.Firebird.DefaultPort)
	assert.Equal(t, 5*time.Second, cfg.Firebird.QueryTimeout)
	assert.Equal(t, "/opt/docgen/docgen", cfg.Generator.ExecutablePath)
	assert.Equal(t, []string{"LANG=C"}, cfg.Generator.Env)
	assert.Equal(t, "minio", cfg.Storage.CatalogBackend)
	// 文件中没有的键仍然使用默认值
	assert.Equal(t, "masterkey", cfg.Firebird.Password)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
