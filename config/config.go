package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Commission CommissionConfig
	Payout     PayoutConfig
	Raffle     RaffleConfig
}

type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	Env          string        `validate:"oneof=development staging production test"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	RateLimit    int           `validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver          string `validate:"oneof=mysql postgres"`
	DSN             string `validate:"required"`
	MaxIdleConns    int    `validate:"gte=0"`
	MaxOpenConns    int    `validate:"gt=0"`
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

// JWTConfig only verifies tokens; issuing them belongs to the identity service.
type JWTConfig struct {
	AccessSecret string `validate:"required"`
	Issuer       string
}

type CommissionConfig struct {
	// MaxDepth is how many sponsor levels receive a commission.
	MaxDepth int `validate:"gte=1,lte=10"`
}

type PayoutConfig struct {
	Enabled  bool
	Schedule string `validate:"required_if=Enabled true"`
	// GatewayURL selects the external transfer API; empty settles payouts
	// on the internal ledger only.
	GatewayURL      string `validate:"omitempty,url"`
	GatewayEmail    string `validate:"required_with=GatewayURL"`
	GatewayPassword string `validate:"required_with=GatewayURL"`
}

type RaffleConfig struct {
	// MaxSelectionAttempts bounds reselection after a ticket bind conflict.
	MaxSelectionAttempts int `validate:"gte=1"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			RateLimit:    getInt("RATE_LIMIT_PER_MINUTE", 100),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			DSN:             getEnv("DATABASE_DSN", "rafflehub:rafflehub@tcp(localhost:3306)/rafflehub?charset=utf8mb4&parseTime=True&loc=UTC"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogQueries:      getBool("DB_LOG_QUERIES", false),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
			Issuer:       getEnv("JWT_ISSUER", "rafflehub"),
		},
		Commission: CommissionConfig{
			MaxDepth: getInt("COMMISSION_MAX_DEPTH", 3),
		},
		Payout: PayoutConfig{
			Enabled:  getBool("PAYOUT_JOB_ENABLED", true),
			Schedule: getEnv("PAYOUT_JOB_SCHEDULE", "0 3 * * *"),

			GatewayURL:      getEnv("PAYOUT_GATEWAY_URL", ""),
			GatewayEmail:    getEnv("PAYOUT_GATEWAY_EMAIL", ""),
			GatewayPassword: getEnv("PAYOUT_GATEWAY_PASSWORD", ""),
		},
		Raffle: RaffleConfig{
			MaxSelectionAttempts: getInt("RAFFLE_MAX_SELECTION_ATTEMPTS", 3),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
