package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Shivansh1251/DoodleSync/internal/cache"
	pkgconfig "github.com/Shivansh1251/DoodleSync/pkg/config"
	"github.com/Shivansh1251/DoodleSync/pkg/database"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	WebSocket WebSocketConfig
	Sync      SyncConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string `mapstructure:"sslmode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled     bool
	Address     string
	Password    string
	DB          int           `mapstructure:"db"`
	CachePrefix string        `mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type SyncConfig struct {
	// SettleDelay is how long a presence join announcement waits after the
	// join so room membership queries see the new member first.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// ActivityWindow is how long an activity flag stays set without a
	// refresh before the server clears it.
	ActivityWindow time.Duration `mapstructure:"activity_window"`
	// HistoryLimit is how many chat messages a joining client receives.
	HistoryLimit int `mapstructure:"history_limit"`
	// RoomListLimit caps the room listing endpoint.
	RoomListLimit int `mapstructure:"room_list_limit"`
	// WriteQueueSize bounds the background document persistence queue.
	WriteQueueSize int `mapstructure:"write_queue_size"`
	// WriteRetries is how many extra attempts a failed document write gets.
	WriteRetries int `mapstructure:"write_retries"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "doodlesync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/doodlesync.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_prefix", "chat:recent")
	v.SetDefault("redis.cache_ttl", "30s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 1048576)
	v.SetDefault("sync.settle_delay", "100ms")
	v.SetDefault("sync.activity_window", "3s")
	v.SetDefault("sync.history_limit", 50)
	v.SetDefault("sync.room_list_limit", 20)
	v.SetDefault("sync.write_queue_size", 256)
	v.SetDefault("sync.write_retries", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 30*time.Second)
	cfg.Sync.SettleDelay = parseDuration(v, "sync.settle_delay", 100*time.Millisecond)
	cfg.Sync.ActivityWindow = parseDuration(v, "sync.activity_window", 3*time.Second)

	return &cfg, nil
}

// DatabaseConfigFor converts the typed config into the shared connector's.
func (c *Config) DatabaseConfigFor() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		DBName:          c.Database.DBName,
		SSLMode:         c.Database.SSLMode,
		FilePath:        c.Database.FilePath,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// RedisCacheConfig converts the typed config into the cache package's.
func (c *Config) RedisCacheConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
