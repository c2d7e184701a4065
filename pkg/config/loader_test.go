package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfig_EnvOverlayAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_SECRET}
server:
  port: ":8080"
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", `
# comment
DB_SECRET="s3cret"
`)

	merged, err := LoadConfig("production", dir)
	require.NoError(t, err)

	db := merged["db"].(map[string]interface{})
	require.Equal(t, "db.internal", db["host"])
	require.Equal(t, 5432, db["port"])
	require.Equal(t, "s3cret", db["password"])
	require.Equal(t, ":8080", merged["server"].(map[string]interface{})["port"])
}

func TestLoadConfig_MissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  slow_threshold: 250ms
outbox:
  batch_size: 50
`)

	var out struct {
		DB     DBConfig     `yaml:"db"`
		Outbox OutboxConfig `yaml:"outbox"`
	}
	require.NoError(t, Decode("local", dir, &out))
	require.Equal(t, "localhost", out.DB.Host)
	require.Equal(t, 250*time.Millisecond, out.DB.SlowThreshold)
	require.Equal(t, 50, out.Outbox.BatchSize)
}

func TestMergeMaps_NestedOverride(t *testing.T) {
	dst := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": "keep",
	}
	src := map[string]interface{}{
		"a": map[string]interface{}{"y": 3},
	}
	got := mergeMaps(dst, src)
	require.Equal(t, map[string]interface{}{"x": 1, "y": 3}, got["a"])
	require.Equal(t, "keep", got["b"])
}
