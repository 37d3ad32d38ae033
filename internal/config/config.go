package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type GatewayMode string

const (
	// GatewayModeShared runs one bot identity for every account.
	GatewayModeShared GatewayMode = "shared"
	// GatewayModePerAccount runs a dedicated connection per account.
	GatewayModePerAccount GatewayMode = "per_account"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	GatewayMode     GatewayMode `env:"GATEWAY_MODE" envDefault:"shared"`
	StoreDialect    string      `env:"WA_STORE_DIALECT" envDefault:"postgres"`
	StoreDSN        string      `env:"WA_STORE_DSN"`
	DeviceName      string      `env:"WA_DEVICE_NAME" envDefault:"Kasku"`
	RelaySecret     string      `env:"RELAY_SECRET"`
	OperatorKeyHash string      `env:"OPERATOR_KEY_HASH"`
	SendRatePerSec  float64     `env:"SEND_RATE_PER_SECOND" envDefault:"2"`
	MaxBodyBytes    int64       `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	AutoRecover            bool `env:"AUTO_RECOVER" envDefault:"true"`
	MaxReconnectAttempts   int  `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectMinSeconds    int  `env:"RECONNECT_MIN_SECONDS" envDefault:"30"`
	ReconnectMaxSeconds    int  `env:"RECONNECT_MAX_SECONDS" envDefault:"300"`
	AuthRetryMinSeconds    int  `env:"AUTH_RETRY_MIN_SECONDS" envDefault:"60"`
	AuthRetryMaxSeconds    int  `env:"AUTH_RETRY_MAX_SECONDS" envDefault:"600"`
	LaunchRetries          int  `env:"LAUNCH_RETRIES" envDefault:"3"`
	LaunchRetryStepSeconds int  `env:"LAUNCH_RETRY_STEP_SECONDS" envDefault:"10"`

	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIModel           string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITranscribeModel string `env:"OPENAI_TRANSCRIBE_MODEL" envDefault:"whisper-1"`

	ReminderCron    string `env:"REMINDER_CRON" envDefault:"0 20 * * *"`
	ReminderFanout  int    `env:"REMINDER_FANOUT" envDefault:"4"`
	DefaultTimezone string `env:"DEFAULT_TIMEZONE" envDefault:"Asia/Jakarta"`
	DefaultLocale   string `env:"DEFAULT_LOCALE" envDefault:"id"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ReconnectMin() time.Duration {
	return time.Duration(c.ReconnectMinSeconds) * time.Second
}

func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxSeconds) * time.Second
}

func (c *Config) AuthRetryMin() time.Duration {
	return time.Duration(c.AuthRetryMinSeconds) * time.Second
}

func (c *Config) AuthRetryMax() time.Duration {
	return time.Duration(c.AuthRetryMaxSeconds) * time.Second
}

func (c *Config) LaunchRetryStep() time.Duration {
	return time.Duration(c.LaunchRetryStepSeconds) * time.Second
}

// SessionStoreDSN returns the automation session store address, falling back
// to the main database when the store shares Postgres.
func (c *Config) SessionStoreDSN() string {
	if c.StoreDSN != "" {
		return c.StoreDSN
	}
	if c.StoreDialect == "sqlite3" {
		return "file:./data/whatsapp.db?_foreign_keys=on&_journal_mode=WAL"
	}
	return c.DatabaseURL
}

// Location resolves DEFAULT_TIMEZONE, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.DefaultTimezone).Msg("unknown DEFAULT_TIMEZONE, using UTC")
		return time.UTC
	}
	return loc
}

func (c *Config) Validate() error {
	switch c.GatewayMode {
	case GatewayModeShared, GatewayModePerAccount:
	default:
		return fmt.Errorf("GATEWAY_MODE must be %q or %q", GatewayModeShared, GatewayModePerAccount)
	}

	switch c.StoreDialect {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("WA_STORE_DIALECT must be postgres or sqlite3")
	}

	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.ReconnectMinSeconds <= 0 || c.ReconnectMaxSeconds < c.ReconnectMinSeconds {
		return fmt.Errorf("RECONNECT_MIN_SECONDS must be positive and not exceed RECONNECT_MAX_SECONDS")
	}
	if c.AuthRetryMinSeconds <= 0 || c.AuthRetryMaxSeconds < c.AuthRetryMinSeconds {
		return fmt.Errorf("AUTH_RETRY_MIN_SECONDS must be positive and not exceed AUTH_RETRY_MAX_SECONDS")
	}
	if c.ReminderFanout <= 0 {
		return fmt.Errorf("REMINDER_FANOUT must be positive")
	}

	if c.RelaySecret == "" {
		log.Warn().Msg("RELAY_SECRET is empty: /activate accepts unsigned requests")
	}
	if c.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty: transaction extraction is disabled")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
