package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	LastActiveSync  = "sync"
	LastActiveEvent = "event"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`
	Addr     string `env:"APP_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel string `env:"APP_LOG_LEVEL" envDefault:"info"`

	DBDSN     string `env:"APP_DB_DSN"`
	DBMigrate bool   `env:"APP_DB_MIGRATE" envDefault:"true"`

	CredentialsURL     string        `env:"APP_CREDENTIALS_URL"`
	CredentialsTimeout time.Duration `env:"APP_CREDENTIALS_TIMEOUT" envDefault:"5s"`

	KafkaBrokers  []string `env:"APP_KAFKA_BROKERS" envSeparator:","`
	KafkaClientID string   `env:"APP_KAFKA_CLIENT_ID" envDefault:"account-service"`
	KafkaGroupID  string   `env:"APP_KAFKA_GROUP_ID" envDefault:"account-service"`

	Topics Topics

	LastActiveMode          string        `env:"APP_LAST_ACTIVE_MODE" envDefault:"sync"`
	LastActiveThrottle      time.Duration `env:"APP_LAST_ACTIVE_THROTTLE" envDefault:"1m"`
	LastActiveBatchSize     int           `env:"APP_LAST_ACTIVE_BATCH_SIZE" envDefault:"500"`
	LastActiveFlushInterval time.Duration `env:"APP_LAST_ACTIVE_FLUSH_INTERVAL" envDefault:"5s"`

	RedisAddrs    []string `env:"APP_REDIS_ADDR" envSeparator:","`
	RedisPassword string   `env:"APP_REDIS_PASSWORD"`

	InternalToken string `env:"APP_INTERNAL_TOKEN"`
	TrustProxy    bool   `env:"APP_TRUST_PROXY" envDefault:"false"`
}

type Topics struct {
	ProfileProvision  string `env:"APP_TOPIC_PROFILE_PROVISION" envDefault:"account.profile-provision"`
	PasscodeReset     string `env:"APP_TOPIC_PASSCODE_RESET" envDefault:"account.passcode-reset"`
	DeleteUserData    string `env:"APP_TOPIC_DELETE_USER_DATA" envDefault:"account.delete-user-data"`
	LastActiveChanged string `env:"APP_TOPIC_LAST_ACTIVE" envDefault:"account.last-active-changed"`
	VerifyAccount     string `env:"APP_TOPIC_VERIFY_ACCOUNT" envDefault:"account.verify-account"`
}

// Load reads the optional .env file named by APP_ENV_FILE (default .env)
// and then parses the process environment. Variables already set win over
// the file.
func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil {
		return Config{}, err
	}
	return LoadFromEnv(env.ToMap(os.Environ()))
}

func LoadFromEnv(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LastActiveMode = strings.ToLower(strings.TrimSpace(cfg.LastActiveMode))
	cfg.CredentialsURL = strings.TrimSpace(cfg.CredentialsURL)
	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)
	cfg.RedisAddrs = cleanList(cfg.RedisAddrs)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Env {
	case "dev", "prod", "test":
	default:
		return errors.New("APP_ENV: must be one of dev, test, prod")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("APP_LOG_LEVEL: must be one of debug, info, warn, error")
	}

	if c.CredentialsURL == "" {
		return errors.New("APP_CREDENTIALS_URL: required")
	}
	parsed, err := url.Parse(c.CredentialsURL)
	if err != nil {
		return fmt.Errorf("APP_CREDENTIALS_URL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return errors.New("APP_CREDENTIALS_URL: must be an absolute URL")
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return errors.New("APP_CREDENTIALS_URL: scheme must be http or https")
	}

	if c.CredentialsTimeout <= 0 {
		return errors.New("APP_CREDENTIALS_TIMEOUT: must be > 0")
	}

	switch c.LastActiveMode {
	case LastActiveSync, LastActiveEvent:
	default:
		return errors.New("APP_LAST_ACTIVE_MODE: must be one of sync, event")
	}
	if c.LastActiveMode == LastActiveEvent && len(c.KafkaBrokers) == 0 {
		return errors.New("APP_LAST_ACTIVE_MODE: event requires APP_KAFKA_BROKERS")
	}
	if c.LastActiveThrottle < 0 {
		return errors.New("APP_LAST_ACTIVE_THROTTLE: must be >= 0")
	}
	if c.LastActiveBatchSize <= 0 {
		return errors.New("APP_LAST_ACTIVE_BATCH_SIZE: must be > 0")
	}
	if c.LastActiveFlushInterval <= 0 {
		return errors.New("APP_LAST_ACTIVE_FLUSH_INTERVAL: must be > 0")
	}

	if c.IsProd() {
		if c.DBDSN == "" {
			return errors.New("APP_DB_DSN: required in prod")
		}
		if len(c.KafkaBrokers) == 0 {
			return errors.New("APP_KAFKA_BROKERS: required in prod")
		}
	}
	return nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// loadDotEnvFile copies variables from a dotenv file into the environment.
// A missing file is not an error. Variables that are already set are kept
// and empty values are skipped.
func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	for k, v := range values {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
