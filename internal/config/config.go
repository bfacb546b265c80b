package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int
	MaxIdle     int
	MaxLifetime time.Duration // recycles pooled connections, 0 = never
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int           // 0 = go-redis default
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MQTTConfig measurement subscriber configuration (disabled by default)
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// PredictionConfig strategy selection
type PredictionConfig struct {
	Strategy       string // fast | slow
	HistoryLimit   int    // slow strategy query cap
	Fallback       bool   // fast falls back to slow when the cache is unavailable
	CacheKeyPrefix string
	CacheTTL       time.Duration // 0 = keep forever
}

// StreamConfig prediction event stream
type StreamConfig struct {
	Enabled bool
	Name    string
	MaxLen  int64
}

// Config wisefido-readmission configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled    bool
	Database     DatabaseConfig
	RedisEnabled bool
	Redis        RedisConfig
	MQTT         MQTTConfig
	Prediction   PredictionConfig
	Stream       StreamConfig
	Log          struct {
		Level  string
		Format string
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv overrides fields from {prefix}_HOST, {prefix}_PORT, ...
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	c.Host = getEnv(prefix+"_HOST", c.Host)
	c.Port = parseInt(getEnv(prefix+"_PORT", ""), c.Port)
	c.User = getEnv(prefix+"_USER", c.User)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Database = getEnv(prefix+"_NAME", c.Database)
	c.SSLMode = getEnv(prefix+"_SSLMODE", c.SSLMode)
	c.MaxConns = parseInt(getEnv(prefix+"_MAX_CONNS", ""), c.MaxConns)
	c.MaxIdle = parseInt(getEnv(prefix+"_MAX_IDLE", ""), c.MaxIdle)
	c.MaxLifetime = parseDuration(getEnv(prefix+"_MAX_LIFETIME", ""), c.MaxLifetime)
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = getEnv(prefix+"_ADDR", c.Addr)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.DB = parseInt(getEnv(prefix+"_DB", ""), c.DB)
	c.PoolSize = parseInt(getEnv(prefix+"_POOL_SIZE", ""), c.PoolSize)
	c.DialTimeout = parseDuration(getEnv(prefix+"_DIAL_TIMEOUT", ""), c.DialTimeout)
	c.ReadTimeout = parseDuration(getEnv(prefix+"_READ_TIMEOUT", ""), c.ReadTimeout)
	c.WriteTimeout = parseDuration(getEnv(prefix+"_WRITE_TIMEOUT", ""), c.WriteTimeout)
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Enabled = parseBool(getEnv(prefix+"_ENABLED", ""), c.Enabled)
	c.Broker = getEnv(prefix+"_BROKER", c.Broker)
	c.ClientID = getEnv(prefix+"_CLIENT_ID", c.ClientID)
	c.Username = getEnv(prefix+"_USERNAME", c.Username)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Topic = getEnv(prefix+"_TOPIC", c.Topic)
	if qos := parseInt(getEnv(prefix+"_QOS", ""), int(c.QoS)); qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Without a database the service runs on the in-memory repositories.
	cfg.DBEnabled = parseBool(getEnv("DB_ENABLED", ""), true)
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "readmission",
		SSLMode:  "disable",
		MaxConns:    20,
		MaxIdle:     5,
		MaxLifetime: 30 * time.Minute,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = parseBool(getEnv("REDIS_ENABLED", ""), true)
	cfg.Redis = RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-readmission",
		Topic:    "readmission/measurements",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Prediction.Strategy = strings.ToLower(getEnv("PREDICTION_STRATEGY", "fast"))
	cfg.Prediction.HistoryLimit = parseInt(getEnv("PREDICTION_HISTORY_LIMIT", "1000"), 1000)
	cfg.Prediction.Fallback = parseBool(getEnv("PREDICTION_FALLBACK", ""), false)
	cfg.Prediction.CacheKeyPrefix = getEnv("PREDICTION_CACHE_PREFIX", "patient:")
	cfg.Prediction.CacheTTL = parseDuration(getEnv("PREDICTION_CACHE_TTL", ""), 0)

	cfg.Stream.Enabled = parseBool(getEnv("STREAM_ENABLED", ""), true)
	cfg.Stream.Name = getEnv("STREAM_NAME", "readmission:predictions:stream")
	cfg.Stream.MaxLen = int64(parseInt(getEnv("STREAM_MAXLEN", "10000"), 10000))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
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

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
