// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	RabbitMQ RabbitMQConfig `envPrefix:"RABBITMQ_"`
	Auth     AuthConfig     `envPrefix:"JWT_"`
	Market   MarketConfig
}

type DatabaseConfig struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"`
	DSN             string        `env:"DSN" envDefault:"data/market.db"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig leaves Addr empty to run without the cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	PoolSize int    `env:"POOL_SIZE" envDefault:"100"`
}

// RabbitMQConfig leaves URL empty to run without event publishing.
type RabbitMQConfig struct {
	URL        string        `env:"URL"`
	Exchange   string        `env:"EXCHANGE" envDefault:"market.events"`
	RetryCount int           `env:"RETRY_COUNT" envDefault:"5"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"2s"`
}

type AuthConfig struct {
	Secret string `env:"SECRET,notEmpty"`
	Issuer string `env:"ISSUER"`
}

type MarketConfig struct {
	Timezone        string `env:"MARKET_TIMEZONE" envDefault:"Local"`
	SameDayCutoff   string `env:"SAME_DAY_CUTOFF" envDefault:"10:00"`
	BookingPrecheck bool   `env:"BOOKING_PRECHECK" envDefault:"true"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: DB_DSN is required")
	}
	if _, err := c.Market.Location(); err != nil {
		return err
	}
	if _, err := c.Market.Cutoff(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

func (m MarketConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: MARKET_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Cutoff parses SAME_DAY_CUTOFF ("HH:MM") as an offset from midnight.
func (m MarketConfig) Cutoff() (time.Duration, error) {
	t, err := time.Parse("15:04", m.SameDayCutoff)
	if err != nil {
		return 0, fmt.Errorf("config: SAME_DAY_CUTOFF %q: want HH:MM", m.SameDayCutoff)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
