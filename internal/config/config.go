package config

import (
	"os"
	"strconv"
)

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig PostgreSQL 配置（STORAGE_BACKEND=postgres 时使用）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Config SmartEscape 摄取服务配置
type Config struct {
	Redis    RedisConfig
	Database DatabaseConfig

	// Gmail API 配置
	Gmail struct {
		BaseURL      string // Gmail API 基础地址
		Query        string // 报警邮件过滤条件（主题搜索）
		MaxResults   int    // 单次拉取的最大邮件数
		AccessToken  string // 静态访问令牌（未配置 RefreshToken 时使用）
		RefreshToken string // OAuth 刷新令牌
		ClientID     string // OAuth 客户端ID
		TokenURL     string // OAuth 令牌端点
	}

	// 摄取配置
	Ingest struct {
		PollInterval int    // 轮询间隔（秒），默认 60
		HistoryCap   int    // 历史记录上限，默认 1000
		HistoryKey   string // 历史记录存储键
		AlertStream  string // 新报警发布的 Redis Stream 名称（空则不发布）
	}

	// 存储后端: "redis"（默认）或 "postgres"
	StorageBackend string

	// HTTP 服务配置
	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "smartescape")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Gmail.BaseURL = getEnv("GMAIL_BASE_URL", "https://gmail.googleapis.com/gmail/v1")
	cfg.Gmail.Query = getEnv("GMAIL_QUERY", `subject:(SmartEscape OR "Smart Escape" OR SMART-ESC)`)
	cfg.Gmail.MaxResults = getEnvInt("GMAIL_MAX_RESULTS", 20)
	cfg.Gmail.AccessToken = getEnv("GMAIL_ACCESS_TOKEN", "")
	cfg.Gmail.RefreshToken = getEnv("GMAIL_REFRESH_TOKEN", "")
	cfg.Gmail.ClientID = getEnv("GMAIL_CLIENT_ID", "")
	cfg.Gmail.TokenURL = getEnv("GMAIL_TOKEN_URL", "https://oauth2.googleapis.com/token")

	cfg.Ingest.PollInterval = getEnvInt("INGEST_POLL_INTERVAL", 60)
	cfg.Ingest.HistoryCap = getEnvInt("INGEST_HISTORY_CAP", 1000)
	cfg.Ingest.HistoryKey = getEnv("INGEST_HISTORY_KEY", "smartescape:alert-history")
	cfg.Ingest.AlertStream = getEnv("INGEST_ALERT_STREAM", "smartescape:alerts")

	cfg.StorageBackend = getEnv("STORAGE_BACKEND", "redis")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
