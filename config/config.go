package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig               `mapstructure:"server"`
	Database       DatabaseConfig             `mapstructure:"database"`
	Redis          RedisConfig                `mapstructure:"redis"`
	JWT            JWTConfig                  `mapstructure:"jwt"`
	Log            LogConfig                  `mapstructure:"log"`
	Settlement     SettlementConfig           `mapstructure:"settlement"`
	Reconciliation ReconciliationConfig       `mapstructure:"reconciliation"`
	Notifier       NotifierConfig             `mapstructure:"notifier"`
	Queue          QueueConfig                `mapstructure:"queue"`
	Partners       map[string]PartnerConfig   `mapstructure:"partners"`
	Merchants      map[string]ProcessorConfig `mapstructure:"merchants"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
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
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type SettlementConfig struct {
	PlatformCurrency string        `mapstructure:"platform_currency"`
	GatewayTimeout   time.Duration `mapstructure:"gateway_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
}

type ReconciliationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Schedule     string        `mapstructure:"schedule"`
	BatchSize    int           `mapstructure:"batch_size"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type NotifierConfig struct {
	Driver   string `mapstructure:"driver"` // nsq, log
	NSQDAddr string `mapstructure:"nsqd_addr"`
	Topic    string `mapstructure:"topic"`
}

type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

// PartnerConfig holds one partner's endpoint and credentials. Driver
// selects the implementation and defaults to the partner id.
type PartnerConfig struct {
	Driver        string `mapstructure:"driver"`
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	SecretKey     string `mapstructure:"secret_key"`
	AccessToken   string `mapstructure:"access_token"`
	CompanyID     string `mapstructure:"company_id"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	TokenURL      string `mapstructure:"token_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Operator      string `mapstructure:"operator"`
	Environment   string `mapstructure:"environment"`
}

// ProcessorConfig configures an external merchant processor.
type ProcessorConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PLZ_.
// Nested keys use underscore: PLZ_DATABASE_HOST, PLZ_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "pliz_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "pliz")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("settlement.platform_currency", "XOF")
	v.SetDefault("settlement.gateway_timeout", "15s")
	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.retry_base_delay", "50ms")
	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.schedule", "@every 1m")
	v.SetDefault("reconciliation.batch_size", 100)
	v.SetDefault("reconciliation.stale_after", "30m")
	v.SetDefault("reconciliation.query_timeout", "10s")
	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.nsqd_addr", "127.0.0.1:4150")
	v.SetDefault("notifier.topic", "pliz.notifications")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.concurrency", 5)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// PLZ_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PLZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env vars alone are enough; a missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for id, p := range cfg.Partners {
		if p.Driver == "" {
			p.Driver = id
		}
		cfg.Partners[id] = p
	}

	return &cfg, nil
}

// Validate reports every missing or inconsistent required value.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Settlement.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("settlement.gateway_timeout must be positive"))
	}
	if c.Notifier.Driver != "nsq" && c.Notifier.Driver != "log" {
		errs = append(errs, fmt.Errorf("notifier.driver %q is not supported", c.Notifier.Driver))
	}
	if c.Notifier.Driver == "nsq" && c.Notifier.NSQDAddr == "" {
		errs = append(errs, errors.New("notifier.nsqd_addr is required for the nsq driver"))
	}
	for id, p := range c.Partners {
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("partners.%s.base_url is required", id))
		}
	}
	for id, m := range c.Merchants {
		if m.BaseURL == "" {
			errs = append(errs, fmt.Errorf("merchants.%s.base_url is required", id))
		}
	}

	return errors.Join(errs...)
}
