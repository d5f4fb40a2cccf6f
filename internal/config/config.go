package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Booking  BookingConfig
	Stripe   StripeConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// StorageConfig selects the seat-state backend: "postgres" for the shared
// store, "memory" for a single-node in-process arena.
type StorageConfig struct {
	Driver string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BookingConfig struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration
	PaymentWindow  time.Duration
	SweepInterval  time.Duration
}

type StripeConfig struct {
	SecretKey string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: envStr("SERVER_HOST", "localhost"),
			Port: serverPort,
		},
		Storage: StorageConfig{
			Driver: envStr("STORAGE_DRIVER", "postgres"),
		},
		Redis: RedisConfig{
			Addr:     envStr("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Stripe: StripeConfig{
			SecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		},
	}

	if cfg.Storage.Driver != "postgres" && cfg.Storage.Driver != "memory" {
		return nil, fmt.Errorf("%s: unknown STORAGE_DRIVER %q", op, cfg.Storage.Driver)
	}

	if cfg.Storage.Driver == "postgres" {
		pgPort, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		pg := PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     envStr("POSTGRES_HOST", "localhost"),
			Port:     pgPort,
			SSLMode:  envStr("POSTGRES_SSLMODE", "disable"),
		}

		if pg.User == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}
		if pg.Password == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
		}
		if pg.Name == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}

		cfg.Postgres = pg
	}

	booking := BookingConfig{
		DefaultHoldTTL: 15 * time.Minute,
		MinHoldTTL:     30 * time.Second,
		MaxHoldTTL:     30 * time.Minute,
		PaymentWindow:  15 * time.Minute,
		SweepInterval:  30 * time.Second,
	}

	for _, v := range []struct {
		name string
		dst  *time.Duration
	}{
		{"HOLD_TTL_DEFAULT", &booking.DefaultHoldTTL},
		{"HOLD_TTL_MIN", &booking.MinHoldTTL},
		{"HOLD_TTL_MAX", &booking.MaxHoldTTL},
		{"PAYMENT_WINDOW", &booking.PaymentWindow},
		{"SWEEP_INTERVAL", &booking.SweepInterval},
	} {
		if s := os.Getenv(v.name); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid %s: %w", op, v.name, err)
			}
			*v.dst = d
		}
	}

	cfg.Booking = booking

	return cfg, nil
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func envStr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return v, nil
}
