package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. AUTHCODES_HTTP_ADDR.
const EnvPrefix = "AUTHCODES"

// Store backends.
const (
	StoreMongoDB = "mongodb"
	StoreRedis   = "redis"
	StoreBolt    = "bolt"
	StoreMemory  = "memory"
)

const defaultSigningKey = "dev_only_session_signing_key_change_me"

// ServerConfig holds all configuration for the server.
type ServerConfig struct {
	Env       string `mapstructure:"ENV"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
	AppName   string `mapstructure:"APP_NAME"`

	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDBName   string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	BoltPath      string `mapstructure:"BOLT_PATH"`

	MailTransport string `mapstructure:"MAIL_TRANSPORT"`
	SMTPHost      string `mapstructure:"SMTP_HOST"`
	SMTPPort      int    `mapstructure:"SMTP_PORT"`
	SMTPUser      string `mapstructure:"SMTP_USER"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom      string `mapstructure:"SMTP_FROM"`
	SESRegion     string `mapstructure:"SES_REGION"`

	CodeTTL        time.Duration `mapstructure:"CODE_TTL"`
	MaxAttempts    int           `mapstructure:"MAX_ATTEMPTS"`
	ResendCooldown time.Duration `mapstructure:"RESEND_COOLDOWN"`
	SweepCron      string        `mapstructure:"SWEEP_CRON"`
	SweepTimeout   time.Duration `mapstructure:"SWEEP_TIMEOUT"`

	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	SessionSigningKey  string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	OtelServiceName    string        `mapstructure:"OTEL_SERVICE_NAME"`
}

// IsProduction reports whether ENV is "production".
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// NeedsMongo reports whether MongoDB must be reachable. Every backend but
// memory keeps users and sessions there.
func (c *ServerConfig) NeedsMongo() bool {
	return c.StoreBackend != StoreMemory
}

// ZerologLevel parses LogLevel.
func (c *ServerConfig) ZerologLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("APP_NAME", "Biihlive")

	v.SetDefault("STORE_BACKEND", StoreMongoDB)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "biihlive")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "authcodes")
	v.SetDefault("BOLT_PATH", "data/authcodes.db")

	v.SetDefault("MAIL_TRANSPORT", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SES_REGION", "us-east-1")

	v.SetDefault("CODE_TTL", "10m")
	v.SetDefault("MAX_ATTEMPTS", 5)
	v.SetDefault("RESEND_COOLDOWN", "60s")
	v.SetDefault("SWEEP_CRON", "0 * * * *")
	v.SetDefault("SWEEP_TIMEOUT", "5m")

	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("SESSION_SIGNING_KEY", defaultSigningKey)
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("OTEL_SERVICE_NAME", "authcodes")
}

// LoadConfig reads configuration from file, environment variables, and
// defaults. configFile may be empty, in which case authcodes.yaml is looked
// up in the usual places. Outside production a .env file in the working
// directory is loaded first.
func LoadConfig(configFile string) (*ServerConfig, error) {
	if !strings.EqualFold(os.Getenv(EnvPrefix+"_ENV"), "production") {
		_ = godotenv.Load()
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("authcodes")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/authcodes/")
		v.AddConfigPath("$HOME/.authcodes")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *ServerConfig) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMongoDB, StoreRedis, StoreBolt, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of mongodb, redis, bolt, memory; got %q", c.StoreBackend))
	}
	if c.NeedsMongo() && (c.MongoURI == "" || c.MongoDBName == "") {
		errs = append(errs, errors.New("MONGO_URI and MONGO_DB_NAME are required"))
	}
	if c.StoreBackend == StoreRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
	}
	if c.StoreBackend == StoreBolt && c.BoltPath == "" {
		errs = append(errs, errors.New("BOLT_PATH is required for the bolt backend"))
	}
	switch c.MailTransport {
	case "", "smtp", "ses", "simulator":
	default:
		errs = append(errs, fmt.Errorf("MAIL_TRANSPORT must be smtp, ses or simulator; got %q", c.MailTransport))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("SMTP_PORT out of range: %d", c.SMTPPort))
	}
	if c.CodeTTL <= 0 {
		errs = append(errs, errors.New("CODE_TTL must be positive"))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("MAX_ATTEMPTS must be positive"))
	}
	if c.ResendCooldown < 0 {
		errs = append(errs, errors.New("RESEND_COOLDOWN must not be negative"))
	}
	if c.SweepCron == "" {
		errs = append(errs, errors.New("SWEEP_CRON is required"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if c.SessionSigningKey == "" {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY is required"))
	} else if c.IsProduction() && c.SessionSigningKey == defaultSigningKey {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY must be changed in production"))
	}
	if _, err := c.ZerologLevel(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}
