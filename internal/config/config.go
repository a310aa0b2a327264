// Package config loads service configuration from defaults, an optional YAML file,
// .env files and HEALTHCHECK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
)

// EnvPrefix namespaces every environment override, e.g. HEALTHCHECK_SERVER_ADDR.
const EnvPrefix = "HEALTHCHECK"

type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Scan      ScanConfig              `mapstructure:"scan"`
	Scoring   scoring.Weights         `mapstructure:"scoring"`
	Reminders ReminderConfig          `mapstructure:"reminders"`
	Archive   ArchiveConfig           `mapstructure:"archive"`
	AI        AIConfig                `mapstructure:"ai"`
	Notify    NotifyConfig            `mapstructure:"notify"`
	Log       LogConfig               `mapstructure:"log"`
	Security  security.SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConns       int32  `mapstructure:"max_conns"`
	MinConns       int32  `mapstructure:"min_conns"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type ScanConfig struct {
	RuleTimeout     time.Duration `mapstructure:"rule_timeout"`
	SiteConcurrency int           `mapstructure:"site_concurrency"`
	CalendarTasks   bool          `mapstructure:"calendar_tasks"`
	FollowUpDays    int           `mapstructure:"follow_up_days"`
	Seed            uint64        `mapstructure:"seed"` // test-data generator, 0 means time-based
}

type ReminderConfig struct {
	Lead        time.Duration `mapstructure:"lead"`
	Grace       time.Duration `mapstructure:"grace"`
	Interval    time.Duration `mapstructure:"interval"` // 0 disables the background loop
	Batch       int           `mapstructure:"batch"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// ArchiveConfig points at an S3-compatible bucket. Archiving is off when Endpoint is empty.
type ArchiveConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// AIConfig points at the suggestion service. Suggestions are off when URL is empty.
type AIConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// NotifyConfig selects the notification sink: a webhook when WebhookURL is set,
// otherwise the log.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.body_limit", 1024*1024)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.migrations_path", "file://migrations")

	v.SetDefault("scan.rule_timeout", 20*time.Second)
	v.SetDefault("scan.site_concurrency", 4)
	v.SetDefault("scan.calendar_tasks", true)
	v.SetDefault("scan.follow_up_days", 7)
	v.SetDefault("scan.seed", 0)

	w := scoring.DefaultWeights()
	v.SetDefault("scoring.critical", w.Critical)
	v.SetDefault("scoring.medium", w.Medium)
	v.SetDefault("scoring.low", w.Low)

	v.SetDefault("reminders.lead", 24*time.Hour)
	v.SetDefault("reminders.grace", 12*time.Hour)
	v.SetDefault("reminders.interval", 5*time.Minute)
	v.SetDefault("reminders.batch", 200)
	v.SetDefault("reminders.max_attempts", 5)

	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "health-check-reports")
	v.SetDefault("archive.region", "us-east-1")

	v.SetDefault("ai.url", "")
	v.SetDefault("ai.token", "")
	v.SetDefault("ai.timeout", 10*time.Second)
	v.SetDefault("ai.retries", 1)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.retries", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	sec := security.DefaultSecurityConfig()
	v.SetDefault("security.rate_limit_scan", sec.RateLimitScan)
	v.SetDefault("security.rate_limit_mutation", sec.RateLimitMutation)
	v.SetDefault("security.rate_limit_clear", sec.RateLimitClear)
	v.SetDefault("security.rate_limit_read", sec.RateLimitRead)
	v.SetDefault("security.max_message_length", sec.MaxMessageLength)
	v.SetDefault("security.max_value_length", sec.MaxValueLength)
	v.SetDefault("security.max_selection", sec.MaxSelection)
	v.SetDefault("security.max_due_horizon", sec.MaxDueHorizon)
	v.SetDefault("security.confirm_token", sec.ConfirmToken)
}

// Load builds the configuration. path may be empty; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// DATABASE_URL is honoured for compatibility with hosted Postgres providers.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would make the engine misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Scoring.Critical < c.Scoring.Medium || c.Scoring.Medium < c.Scoring.Low || c.Scoring.Low < 0 {
		errs = append(errs, fmt.Errorf("scoring weights must satisfy critical >= medium >= low >= 0"))
	}
	if c.Scan.SiteConcurrency < 1 {
		errs = append(errs, fmt.Errorf("scan.site_concurrency must be at least 1"))
	}
	if c.Scan.RuleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan.rule_timeout must be positive"))
	}
	if c.Reminders.Lead < 0 || c.Reminders.Grace < 0 {
		errs = append(errs, fmt.Errorf("reminders.lead and reminders.grace must not be negative"))
	}
	if c.Reminders.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("reminders.max_attempts must be at least 1"))
	}
	if c.Security.ConfirmToken == "" {
		errs = append(errs, fmt.Errorf("security.confirm_token must not be empty"))
	}
	if c.Archive.Endpoint != "" && c.Archive.Bucket == "" {
		errs = append(errs, fmt.Errorf("archive.bucket is required when archive.endpoint is set"))
	}
	return errors.Join(errs...)
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url not set (HEALTHCHECK_DATABASE_URL or DATABASE_URL)")
	}
	return nil
}
