package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Email    EmailConfig    `mapstructure:"email"`
	Rate     RateConfig     `mapstructure:"rate"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type RedisConfig struct {
	URL string `mapstructure:"url" envconfig:"REDIS_URL"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size" envconfig:"OUTBOX_BATCH_SIZE"`
	PollInterval    time.Duration `mapstructure:"poll_interval" envconfig:"OUTBOX_POLL_INTERVAL"`
	RetryAttempts   int           `mapstructure:"retry_attempts" envconfig:"OUTBOX_RETRY_ATTEMPTS"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" envconfig:"OUTBOX_RETRY_DELAY"`
	RetentionDays   int           `mapstructure:"retention_days" envconfig:"OUTBOX_RETENTION_DAYS"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"OUTBOX_CLEANUP_INTERVAL"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval" envconfig:"SWEEP_INTERVAL"`
	// GraceWindow is how far past its due time a scheduled dose may run
	// before the sweep marks it missed.
	GraceWindow time.Duration `mapstructure:"grace_window" envconfig:"SWEEP_GRACE_WINDOW"`
	// MissedDosePolicy is either "consume" or "retain".
	MissedDosePolicy string `mapstructure:"missed_dose_policy" envconfig:"SWEEP_MISSED_DOSE_POLICY"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
	// DefaultRecipient receives reminder mail when no per-user directory
	// is configured.
	DefaultRecipient string `mapstructure:"default_recipient" envconfig:"SMTP_DEFAULT_RECIPIENT"`
}

type RateConfig struct {
	RPS   float64 `mapstructure:"rps" envconfig:"RATE_RPS"`
	Burst int     `mapstructure:"burst" envconfig:"RATE_BURST"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval", 5*time.Second)
	viper.SetDefault("outbox.retry_attempts", 3)
	viper.SetDefault("outbox.retry_delay", 5*time.Second)
	viper.SetDefault("outbox.retention_days", 7)
	viper.SetDefault("outbox.cleanup_interval", time.Hour)
	viper.SetDefault("sweep.interval", 5*time.Minute)
	viper.SetDefault("sweep.grace_window", time.Hour)
	viper.SetDefault("sweep.missed_dose_policy", "consume")
	viper.SetDefault("email.port", 587)
	viper.SetDefault("rate.rps", 100)
	viper.SetDefault("rate.burst", 200)
}

// LoadConfig reads config.yaml if present and then applies environment
// overrides via envconfig. A missing config file is not an error.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	return &config, nil
}
