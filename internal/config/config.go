package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "TELEHEALTH"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Channels   ChannelConfig    `mapstructure:"channels"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Forms      FormsConfig      `mapstructure:"forms"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver   string        `mapstructure:"driver"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN is the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type ChannelConfig struct {
	Driver  string `mapstructure:"driver"`
	History int    `mapstructure:"history"`
}

type AuthConfig struct {
	// Mode is "static" or "jwt".
	Mode       string `mapstructure:"mode"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	JWTIssuer  string `mapstructure:"jwt_issuer"`
	StaticUser string `mapstructure:"static_user"`
	StaticRole string `mapstructure:"static_role"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type MonitoringConfig struct {
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	MaxBatch       int           `mapstructure:"max_batch"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateWindow     time.Duration `mapstructure:"rate_window"`
	RemoteEndpoint string        `mapstructure:"remote_endpoint"`
	RemoteTimeout  time.Duration `mapstructure:"remote_timeout"`
	AlertTo        []string      `mapstructure:"alert_to"`
	RetentionDays  int           `mapstructure:"retention_days"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type FormsConfig struct {
	SeedDir string `mapstructure:"seed_dir"`
}

// secrets are only ever read from the environment.
type secrets struct {
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
}

// LoadConfig reads .env, the optional yaml file at path (or config.yaml in
// . and ./config when path is empty) and TELEHEALTH_* variables, in
// increasing precedence.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(s)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	if s.JWTSecret != "" {
		c.Auth.JWTSecret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.RedisPassword != "" {
		c.Redis.Password = s.RedisPassword
	}
}

// Validate rejects combinations the server can't start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			problems = append(problems, "database.host and database.name are required for the postgres store")
		}
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			problems = append(problems, "mongo.uri and mongo.database are required for the mongo store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Channels.Driver {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis channel driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown channels.driver %q", c.Channels.Driver))
	}
	switch c.Auth.Mode {
	case "static":
	case "jwt":
		if c.Auth.JWTSecret == "" {
			problems = append(problems, "auth.jwt_secret is required in jwt mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown auth.mode %q", c.Auth.Mode))
	}
	if c.Monitoring.MaxBatch <= 0 {
		problems = append(problems, "monitoring.max_batch must be positive")
	}
	if c.Monitoring.FlushInterval <= 0 {
		problems = append(problems, "monitoring.flush_interval must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.cache_ttl", 5*time.Minute)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "telehealth")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "telehealth")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("channels.driver", "memory")
	v.SetDefault("channels.history", 100)

	v.SetDefault("auth.mode", "static")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "telehealth-admin")
	v.SetDefault("auth.static_user", "")
	v.SetDefault("auth.static_role", "admin")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})

	v.SetDefault("monitoring.flush_interval", 30*time.Second)
	v.SetDefault("monitoring.max_batch", 50)
	v.SetDefault("monitoring.rate_limit", 10)
	v.SetDefault("monitoring.rate_window", time.Minute)
	v.SetDefault("monitoring.remote_endpoint", "")
	v.SetDefault("monitoring.remote_timeout", 5*time.Second)
	v.SetDefault("monitoring.alert_to", []string{})
	v.SetDefault("monitoring.retention_days", 30)
	v.SetDefault("monitoring.sweep_interval", time.Hour)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "alerts@telehealth.local")

	v.SetDefault("forms.seed_dir", "")
}
