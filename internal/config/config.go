package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Launch LaunchConfig
	Tool   ToolConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds the static administrative API key.
type AuthConfig struct {
	APIKey string
}

// LaunchConfig configures launch-token verification: the shared HMAC
// secret, the longest token lifetime the verifier accepts, and the
// per-IP rate limit on the launch endpoint.
type LaunchConfig struct {
	Secret          string
	MaxLifetime     time.Duration
	RateLimitMax    int
	RateLimitWindow int
}

// ToolConfig holds the public base URL the metadata endpoint derives
// tool URLs from. May be empty; metadata then carries empty URL fields.
type ToolConfig struct {
	BaseURL string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: k.Strings("server.cors.origins"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Auth: AuthConfig{
			APIKey: k.String("auth.api.key"),
		},
		Launch: LaunchConfig{
			Secret:          k.String("launch.secret"),
			RateLimitMax:    k.Int("launch.rate.max"),
			RateLimitWindow: k.Int("launch.rate.window"),
		},
		Tool: ToolConfig{
			BaseURL: k.String("tool.base.url"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "quotad"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "quotad"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Launch.RateLimitMax == 0 {
		cfg.Launch.RateLimitMax = 30
	}
	if cfg.Launch.RateLimitWindow == 0 {
		cfg.Launch.RateLimitWindow = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	lifetimeStr := k.String("launch.max.lifetime")
	if lifetimeStr == "" {
		lifetimeStr = "30s"
	}
	cfg.Launch.MaxLifetime, err = time.ParseDuration(lifetimeStr)
	if err != nil {
		return nil, fmt.Errorf("parsing launch max lifetime: %w", err)
	}

	return cfg, nil
}
