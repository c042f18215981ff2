package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Health        HealthConfig        `mapstructure:"health"`
	Settlement    SettlementConfig    `mapstructure:"settlement"`
	ServiceAuth   ServiceAuthConfig   `mapstructure:"service_auth"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IOTimeout   time.Duration `mapstructure:"io_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig controls payment event publication. Disabled means events are
// only logged.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// CollaboratorsConfig points at the services this core depends on.
type CollaboratorsConfig struct {
	Identity CollaboratorConfig `mapstructure:"identity"`
	Wallet   CollaboratorConfig `mapstructure:"wallet"`
}

type CollaboratorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // per outbound call
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // per dependency probe
}

type SettlementConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	PendingGrace  time.Duration `mapstructure:"pending_grace"`
	StuckAfter    time.Duration `mapstructure:"stuck_after"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

// ServiceAuthConfig signs the tokens this service presents to the wallet
// collaborator when no end-user token is available (background settlement).
type ServiceAuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: POC_ (Payment Orchestration Core).
// Nested keys use underscore: POC_DATABASE_HOST, POC_COLLABORATORS_WALLET_BASE_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8003)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payments")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.io_timeout", "1s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "payment.events")
	v.SetDefault("collaborators.identity.base_url", "http://localhost:8001")
	v.SetDefault("collaborators.identity.timeout", "3s")
	v.SetDefault("collaborators.wallet.base_url", "http://localhost:8002")
	v.SetDefault("collaborators.wallet.timeout", "3s")
	v.SetDefault("health.timeout", "2s")
	v.SetDefault("settlement.workers", 4)
	v.SetDefault("settlement.queue_size", 1024)
	v.SetDefault("settlement.settle_timeout", "10s")
	v.SetDefault("settlement.sweep_interval", "30s")
	v.SetDefault("settlement.pending_grace", "1m")
	v.SetDefault("settlement.stuck_after", "5m")
	v.SetDefault("settlement.sweep_batch", 100)
	v.SetDefault("service_auth.secret", "")
	v.SetDefault("service_auth.issuer", "payment-service")
	v.SetDefault("service_auth.audience", "wallet-service")
	v.SetDefault("service_auth.ttl", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// POC_COLLABORATORS_WALLET_BASE_URL -> collaborators.wallet.base_url
	v.SetEnvPrefix("POC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Collaborators.Identity.BaseURL == "" || c.Collaborators.Wallet.BaseURL == "" {
		return fmt.Errorf("collaborator base URLs must be set")
	}
	if c.Collaborators.Identity.Timeout <= 0 || c.Collaborators.Wallet.Timeout <= 0 {
		return fmt.Errorf("collaborator timeouts must be positive")
	}
	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health.timeout must be positive")
	}
	if c.Settlement.Workers < 1 {
		return fmt.Errorf("settlement.workers must be at least 1")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}
