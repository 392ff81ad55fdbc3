package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Directory DirectoryConfig
	Tags      TagConfig
	Cache     CacheConfig
	ClientID  ClientIDConfig
	Analytics AnalyticsConfig
	App       AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" required:"true"`
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`

	// Domain prefixes every short URL handed back to users, e.g. "https://sho.rt".
	Domain string `envconfig:"SERVER_DOMAIN" required:"true"`

	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	TrustProxy      bool          `envconfig:"SERVER_TRUST_PROXY" default:"false"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS"`
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return fmt.Errorf("read, write and idle timeouts must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Directory backends selected by the DATABASE_URL scheme.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// DirectoryConfig selects and tunes the durable tag store.
type DirectoryConfig struct {
	URL       string `envconfig:"DATABASE_URL" required:"true"`
	MaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	Migrate   bool   `envconfig:"DB_MIGRATE" default:"true"`
	KeyPrefix string `envconfig:"DIRECTORY_KEY_PREFIX" default:"urls"`
}

// Backend names the directory implementation for URL.
func (c *DirectoryConfig) Backend() (string, error) {
	if strings.HasPrefix(c.URL, "file:") {
		return BackendSQLite, nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "redis", "rediss":
		return BackendRedis, nil
	case "sqlite":
		return BackendSQLite, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
}

func (c *DirectoryConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database url cannot be empty")
	}
	if _, err := c.Backend(); err != nil {
		return err
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) must be between 0 and max connections (%d)", c.MinConns, c.MaxConns)
	}
	if strings.ContainsAny(c.KeyPrefix, ".#$[]") {
		return fmt.Errorf("key prefix %q contains reserved characters", c.KeyPrefix)
	}
	return nil
}

// TagConfig controls tag generation and the content denylists.
type TagConfig struct {
	Length           int      `envconfig:"TAG_LENGTH" default:"5"`
	GenerateAttempts int      `envconfig:"TAG_GENERATE_ATTEMPTS" default:"1"`
	Blacklist        []string `envconfig:"TAG_BLACKLIST"`
	DomainBlacklist  []string `envconfig:"DOMAIN_BLACKLIST"`
}

func (c *TagConfig) Validate() error {
	if c.Length < 2 || c.Length > 64 {
		return fmt.Errorf("tag length must be between 2 and 64, got %d", c.Length)
	}
	if c.GenerateAttempts < 1 || c.GenerateAttempts > 10 {
		return fmt.Errorf("tag generate attempts must be between 1 and 10, got %d", c.GenerateAttempts)
	}
	return nil
}

type CacheConfig struct {
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"168h"`
	SweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1h"`
}

func (c *CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("cache sweep interval must be positive")
	}
	return nil
}

// ClientIDConfig holds the two base strings the pseudo client id is built on.
type ClientIDConfig struct {
	FirstPart  string `envconfig:"CLIENT_ID_FIRST_PART" default:"1000000000"`
	SecondPart string `envconfig:"CLIENT_ID_SECOND_PART" default:"1000000000"`
}

func (c *ClientIDConfig) Validate() error {
	if len(c.FirstPart) != 10 || len(c.SecondPart) != 10 {
		return fmt.Errorf("client id parts must be exactly 10 bytes each")
	}
	return nil
}

// Analytics sinks.
const (
	SinkNone        = "none"
	SinkMeasurement = "measurement"
	SinkNATS        = "nats"
)

type AnalyticsConfig struct {
	Sink          string        `envconfig:"ANALYTICS_SINK" default:"none"`
	Endpoint      string        `envconfig:"ANALYTICS_ENDPOINT"`
	MeasurementID string        `envconfig:"ANALYTICS_MEASUREMENT_ID"`
	APISecret     string        `envconfig:"ANALYTICS_API_SECRET"`
	Timeout       time.Duration `envconfig:"ANALYTICS_TIMEOUT" default:"5s"`
	NATSURL       string        `envconfig:"NATS_URL"`
	NATSSubject   string        `envconfig:"NATS_SUBJECT" default:"tags.usage"`
}

func (c *AnalyticsConfig) Validate() error {
	switch c.Sink {
	case SinkNone:
	case SinkMeasurement:
		if c.MeasurementID == "" || c.APISecret == "" {
			return fmt.Errorf("measurement id and api secret are required for the measurement sink")
		}
	case SinkNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("nats url is required for the nats sink")
		}
	default:
		return fmt.Errorf("invalid analytics sink: %s (must be one of: none, measurement, nats)", c.Sink)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("analytics timeout must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`  // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error

	// LogRemoteAddr adds client addresses to the access log.
	LogRemoteAddr bool `envconfig:"LOG_REMOTE_ADDR" default:"false"`
}

func (c *AppConfig) Validate() error {
	switch c.Environment {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

type section interface {
	Validate() error
}

// Load reads every section from the environment and validates it.
// .env files are loaded by the caller.
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name   string
		target section
	}{
		{"Server", &cfg.Server},
		{"Directory", &cfg.Directory},
		{"Tags", &cfg.Tags},
		{"Cache", &cfg.Cache},
		{"ClientID", &cfg.ClientID},
		{"Analytics", &cfg.Analytics},
		{"App", &cfg.App},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.target.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
