// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
	Loan      LoanConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	FrontendOrigin string
}

// GatewayConfig holds the PayNecta credentials and timeouts.
type GatewayConfig struct {
	BaseURL         string
	APIKey          string
	Email           string
	Code            string
	InitiateTimeout time.Duration
	StatusTimeout   time.Duration
}

type StoreConfig struct {
	Driver   string
	FilePath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ReconcileConfig struct {
	PollInterval    time.Duration
	PollMaxLifetime time.Duration
	SweepInterval   time.Duration
	ReleaseDelay    time.Duration
}

type LoanConfig struct {
	DefaultAmount string
}

func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", getEnv("SERVER_PORT", "3000")),
			Env:            getEnv("ENVIRONMENT", "development"),
			FrontendOrigin: getEnv("FRONTEND_ORIGIN", "https://techspacefinance.onrender.com"),
		},
		Gateway: GatewayConfig{
			BaseURL:         strings.TrimRight(getEnv("PAYNECTA_BASE_URL", "https://paynecta.co.ke"), "/"),
			APIKey:          getEnv("PAYNECTA_API_KEY", ""),
			Email:           getEnv("PAYNECTA_EMAIL", ""),
			Code:            getEnv("PAYNECTA_CODE", ""),
			InitiateTimeout: getEnvAsDuration("PAYNECTA_INITIATE_TIMEOUT", 15*time.Second),
			StatusTimeout:   getEnvAsDuration("PAYNECTA_STATUS_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", StoreFile)),
			FilePath: getEnv("RECEIPTS_FILE", "receipts.json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "stk_push"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: parseCSVEnv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "receipt-events"),
		},
		Reconcile: ReconcileConfig{
			PollInterval:    getEnvAsDuration("POLL_INTERVAL", 15*time.Second),
			PollMaxLifetime: getEnvAsDuration("POLL_MAX_LIFETIME", 30*time.Minute),
			SweepInterval:   getEnvAsDuration("RELEASE_SWEEP_INTERVAL", 5*time.Minute),
			ReleaseDelay:    getEnvAsDuration("RELEASE_DELAY", 24*time.Hour),
		},
		Loan: LoanConfig{
			DefaultAmount: getEnv("DEFAULT_LOAN_AMOUNT", "50000"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Gateway.APIKey == "" || cfg.Gateway.Email == "" || cfg.Gateway.Code == "" {
		logger.Warn("gateway credentials incomplete, STK pushes will be rejected upstream",
			zap.Bool("api_key_set", cfg.Gateway.APIKey != ""),
			zap.Bool("email_set", cfg.Gateway.Email != ""),
			zap.Bool("code_set", cfg.Gateway.Code != ""))
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Duration("poll_interval", cfg.Reconcile.PollInterval),
		zap.Duration("poll_max_lifetime", cfg.Reconcile.PollMaxLifetime),
		zap.Duration("sweep_interval", cfg.Reconcile.SweepInterval))

	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreFile, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreFile && c.Store.FilePath == "" {
		return fmt.Errorf("RECEIPTS_FILE is required for the file store")
	}

	durations := map[string]time.Duration{
		"PAYNECTA_INITIATE_TIMEOUT": c.Gateway.InitiateTimeout,
		"PAYNECTA_STATUS_TIMEOUT":   c.Gateway.StatusTimeout,
		"POLL_INTERVAL":             c.Reconcile.PollInterval,
		"POLL_MAX_LIFETIME":         c.Reconcile.PollMaxLifetime,
		"RELEASE_SWEEP_INTERVAL":    c.Reconcile.SweepInterval,
		"RELEASE_DELAY":             c.Reconcile.ReleaseDelay,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka enabled without brokers or topic")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseCSVEnv(key, fallback string) []string {
	val := getEnv(key, fallback)
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
