package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	DispatchTimeout    time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`
	ErrorLogMaxLength  int           `env:"ERROR_LOG_MAX_LENGTH" envDefault:"1000"`
	AttachmentMaxBytes int64         `env:"ATTACHMENT_MAX_BYTES" envDefault:"26214400"`

	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"scheduled_message_events"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CycleLockKey  string        `env:"CYCLE_LOCK_KEY" envDefault:"scheduler:dispatch-cycle"`
	CycleLockTTL  time.Duration `env:"CYCLE_LOCK_TTL" envDefault:"5m"`
}

// Load reads .env (when present) and then the process environment. The
// returned bool reports whether a .env file was found.
func Load() (Config, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := Parse()
	return cfg, dotenv, err
}

// Parse builds a Config from the process environment only.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.DispatchTimeout <= 0 {
		return errors.New("DISPATCH_TIMEOUT must be positive")
	}
	if c.ErrorLogMaxLength < 1 {
		return errors.New("ERROR_LOG_MAX_LENGTH must be at least 1")
	}
	if c.AttachmentMaxBytes < 1 {
		return errors.New("ATTACHMENT_MAX_BYTES must be at least 1")
	}
	if c.RedisAddr != "" && c.CycleLockTTL <= 0 {
		return errors.New("CYCLE_LOCK_TTL must be positive")
	}
	if c.DatabaseURL == "" && (c.DBUser == "" || c.DBName == "") {
		return errors.New("DATABASE_URL or DB_USER and DB_NAME must be set")
	}
	return nil
}

// DSN returns DATABASE_URL, or composes one from the DB_* keys.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%s", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func (c Config) Production() bool {
	return c.AppEnv == "production"
}
