package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Devices  DevicesConfig  `mapstructure:"devices"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateBurst    int           `mapstructure:"rate_burst"`
	RatePerSec   int           `mapstructure:"rate_per_sec"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig describes the PostgreSQL connection. An empty DSN selects
// the in-memory repositories.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig describes the optional Redis backend for access history.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds the identity provider's verification material. The
// service only verifies tokens; it never issues them.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
	PublicKey     []byte `mapstructure:"-"`
}

// DevicesConfig describes the external device registry used to gate zone
// deletion.
type DevicesConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts uint          `mapstructure:"max_attempts"`
}

// EngineConfig tunes the decision engine.
type EngineConfig struct {
	EvaluateTimeout      time.Duration `mapstructure:"evaluate_timeout"`
	RestrictedMinLevel   int           `mapstructure:"restricted_min_level"`
	HighSecurityMinLevel int           `mapstructure:"high_security_min_level"`
}

// Load merges config file values with environment overrides. A missing file
// is fine; defaults plus environment cover the full surface.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("zonegate")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if key := loadKeyResource(cfg.Auth.PublicKeyPath, "ZONEGATE_AUTH_PUBLIC_KEY_DATA"); key != nil {
		cfg.Auth.PublicKey = key
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.rate_per_sec", 10)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("devices.base_url", "")
	v.SetDefault("devices.timeout", 5*time.Second)
	v.SetDefault("devices.max_attempts", 3)
	v.SetDefault("engine.evaluate_timeout", 3*time.Second)
	v.SetDefault("engine.restricted_min_level", 5)
	v.SetDefault("engine.high_security_min_level", 8)
}

// loadKeyResource reads PEM material either directly from the environment
// (container deployments) or from the configured file path.
func loadKeyResource(path, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
