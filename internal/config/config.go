package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config PRMS（患者转诊管理）服务配置
//
// Precedence: built-in defaults < YAML file (PRMS_CONFIG or --config) < environment variables.
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Backup   BackupConfig   `yaml:"backup"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// StoreConfig 记录存储配置
type StoreConfig struct {
	Backend   string `yaml:"backend"`    // excel | postgres | memory
	ExcelPath string `yaml:"excel_path"` // spreadsheet file, relative to the working directory
}

// DatabaseConfig 数据库配置（STORE_BACKEND=postgres 时使用）
type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	SSLMode     string `yaml:"sslmode"`
	MaxConns    int    `yaml:"max_conns"`
	MaxIdle     int    `yaml:"max_idle"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis Streams 事件发布配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// MQTTConfig MQTT 事件发布配置
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// WebhookConfig posts every referral event to URL when set.
type WebhookConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Timeout 请求超时
func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// BackupConfig 表格文件定时备份到 MinIO / S3
type BackupConfig struct {
	Enabled     bool   `yaml:"enabled"`
	IntervalSec int    `yaml:"interval_sec"`
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	UseSSL      bool   `yaml:"use_ssl"`
	Prefix      string `yaml:"prefix"`
}

// Interval 备份间隔
func (c BackupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Default returns the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"

	cfg.Store.Backend = "excel"
	cfg.Store.ExcelPath = "patients.xlsx"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "prms"
	cfg.Database.SSLMode = "disable"
	cfg.Database.AutoMigrate = true

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Stream = "prms:referral-events"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "prms"
	cfg.MQTT.TopicPrefix = "prms/referrals"
	cfg.MQTT.QoS = 1

	cfg.Webhook.TimeoutSec = 10

	cfg.Backup.IntervalSec = 3600
	cfg.Backup.Endpoint = "localhost:9000"
	cfg.Backup.Bucket = "prms-backups"
	cfg.Backup.Prefix = "prms"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load builds the configuration. path may be empty; PRMS_CONFIG is used as a fallback.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PRMS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.ExcelPath = getEnv("STORE_EXCEL_PATH", cfg.Store.ExcelPath)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = parseInt(getEnv("DB_PORT", ""), cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.AutoMigrate = parseBool(getEnv("DB_AUTO_MIGRATE", ""), cfg.Database.AutoMigrate)

	cfg.Redis.Enabled = parseBool(getEnv("REDIS_ENABLED", ""), cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", ""), cfg.Redis.DB)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", cfg.Redis.Stream)

	cfg.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", ""), cfg.MQTT.Enabled)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.TimeoutSec = parseInt(getEnv("WEBHOOK_TIMEOUT_SEC", ""), cfg.Webhook.TimeoutSec)

	cfg.Backup.Enabled = parseBool(getEnv("BACKUP_ENABLED", ""), cfg.Backup.Enabled)
	cfg.Backup.IntervalSec = parseInt(getEnv("BACKUP_INTERVAL_SEC", ""), cfg.Backup.IntervalSec)
	cfg.Backup.Endpoint = getEnv("MINIO_ENDPOINT", cfg.Backup.Endpoint)
	cfg.Backup.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Backup.AccessKey)
	cfg.Backup.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Backup.SecretKey)
	cfg.Backup.Bucket = getEnv("MINIO_BUCKET", cfg.Backup.Bucket)
	cfg.Backup.UseSSL = parseBool(getEnv("MINIO_USE_SSL", ""), cfg.Backup.UseSSL)
	cfg.Backup.Prefix = getEnv("BACKUP_PREFIX", cfg.Backup.Prefix)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "excel":
		if c.Store.ExcelPath == "" {
			return fmt.Errorf("store excel_path is required for the excel backend")
		}
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid store backend %q: must be excel, postgres or memory", c.Store.Backend)
	}
	if c.Backup.Enabled && c.Backup.IntervalSec <= 0 {
		return fmt.Errorf("backup interval must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
