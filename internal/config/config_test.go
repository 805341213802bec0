package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PRMS_CONFIG", "HTTP_ADDR", "STORE_BACKEND", "STORE_EXCEL_PATH",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_AUTO_MIGRATE",
	"REDIS_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_STREAM",
	"MQTT_ENABLED", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC_PREFIX",
	"WEBHOOK_URL", "WEBHOOK_TIMEOUT_SEC",
	"BACKUP_ENABLED", "BACKUP_INTERVAL_SEC", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	"MINIO_BUCKET", "MINIO_USE_SSL", "BACKUP_PREFIX",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv 清除环境变量（空值等同于未设置）
func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "excel", cfg.Store.Backend)
	assert.Equal(t, "patients.xlsx", cfg.Store.ExcelPath)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "prms", cfg.Database.Database)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "prms:referral-events", cfg.Redis.Stream)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "prms/referrals", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "", cfg.Webhook.URL)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout())
	assert.False(t, cfg.Backup.Enabled)
	assert.Equal(t, time.Hour, cfg.Backup.Interval())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MQTT_ENABLED", "1")
	t.Setenv("WEBHOOK_URL", "http://hooks.local/referrals")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "http://hooks.local/referrals", cfg.Webhook.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prms.yaml")
	content := `
http:
  addr: ":7070"
store:
  backend: excel
  excel_path: /data/referrals.xlsx
redis:
  enabled: true
  stream: clinic:events
backup:
  enabled: true
  interval_sec: 600
  bucket: clinic-backups
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "/data/referrals.xlsx", cfg.Store.ExcelPath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "clinic:events", cfg.Redis.Stream)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr, "unset keys keep defaults")
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Backup.Interval())
	assert.Equal(t, "clinic-backups", cfg.Backup.Bucket)
	assert.Equal(t, "json", cfg.Log.Format, "env wins over file")
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "prms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o600))
	t.Setenv("PRMS_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("http: [unclosed"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)

	t.Setenv("STORE_BACKEND", "mongodb")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store backend")
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", c.GetDSN())
}
