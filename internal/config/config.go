package config

import (
	"os"
	"strconv"
	"time"
)

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	// 掉线后固定重连间隔
	ReconnectInterval time.Duration
}

// RedisConfig Redis配置（缩略图哈希缓存）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// APIConfig 后端 HTTP API 配置
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SyncConfig 同步核心配置
type SyncConfig struct {
	// 文档 ID（一个进程会话服务一个文档）
	PresentationID string

	// 输入法安静期：最后一次按键后多久清除打字保护
	TypingQuietPeriod time.Duration

	// 缩略图渲染最大延迟（空闲调度的兜底超时）
	ThumbnailMaxDefer time.Duration

	// 首页缩略图上传的安静期（相同指纹合并为一次上传）
	UploadQuietPeriod time.Duration

	// 缓存的哈希/指纹 TTL
	ThumbnailCacheTTL time.Duration
}

// Config 演示文稿同步服务配置
type Config struct {
	MQTT  MQTTConfig
	Redis RedisConfig
	API   APIConfig
	Sync  SyncConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "presentation-sync")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.ReconnectInterval = getEnvDuration("MQTT_RECONNECT_INTERVAL", 3*time.Second)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.API.BaseURL = getEnv("API_BASE_URL", "http://localhost:8080")
	cfg.API.Timeout = getEnvDuration("API_TIMEOUT", 30*time.Second)

	cfg.Sync.PresentationID = getEnv("PRESENTATION_ID", "")
	cfg.Sync.TypingQuietPeriod = getEnvDuration("SYNC_TYPING_QUIET_PERIOD", 800*time.Millisecond)
	cfg.Sync.ThumbnailMaxDefer = getEnvDuration("SYNC_THUMBNAIL_MAX_DEFER", 2*time.Second)
	cfg.Sync.UploadQuietPeriod = getEnvDuration("SYNC_UPLOAD_QUIET_PERIOD", 5*time.Second)
	cfg.Sync.ThumbnailCacheTTL = getEnvDuration("SYNC_THUMBNAIL_CACHE_TTL", 24*time.Hour)

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		// 兼容纯秒数写法
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
