package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=inventory port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	Env         string
	LogLevel    string
	DBDriver    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	MetricsPrefix string

	Detection DetectionConfig
	Redis     RedisConfig
}

type DetectionConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
	LockTTL      time.Duration
	AlertPolicy  string // security | standard
	// Timezone decides which wall-clock hours count as after hours.
	Timezone string
}

// Location resolves Timezone; an empty value means the process zone.
func (d DetectionConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(d.Timezone)
}

// RedisConfig is optional; an empty Addr disables the distributed detection lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads .env (if present), an optional YAML file named by CONFIG_FILE and the
// process environment, in increasing priority.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("METRICS_PREFIX", "inventory")
	v.SetDefault("DETECTION_INTERVAL", 30*time.Minute)
	v.SetDefault("DETECTION_INITIAL_DELAY", 10*time.Second)
	v.SetDefault("DETECTION_LOCK_TTL", 25*time.Minute)
	v.SetDefault("ALERT_POLICY", "security")
	v.SetDefault("DETECTION_TIMEZONE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTPPort:      v.GetString("HTTP_PORT"),
		Env:           v.GetString("APP_ENV"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		DBDriver:      strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:   v.GetString("DATABASE_DSN"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		CORSOrigins:   v.GetString("CORS_ALLOWED_ORIGINS"),
		MetricsPrefix: v.GetString("METRICS_PREFIX"),
		Detection: DetectionConfig{
			Interval:     v.GetDuration("DETECTION_INTERVAL"),
			InitialDelay: v.GetDuration("DETECTION_INITIAL_DELAY"),
			LockTTL:      v.GetDuration("DETECTION_LOCK_TTL"),
			AlertPolicy:  strings.ToLower(v.GetString("ALERT_POLICY")),
			Timezone:     v.GetString("DETECTION_TIMEZONE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
	}
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Detection.Interval <= 0 {
		return errors.New("DETECTION_INTERVAL must be positive")
	}
	if c.Detection.InitialDelay < 0 {
		return errors.New("DETECTION_INITIAL_DELAY cannot be negative")
	}
	if _, err := c.Detection.Location(); err != nil {
		return fmt.Errorf("invalid DETECTION_TIMEZONE: %w", err)
	}
	switch c.Detection.AlertPolicy {
	case "security", "standard":
	default:
		return fmt.Errorf("unsupported ALERT_POLICY %q", c.Detection.AlertPolicy)
	}
	return nil
}

// Warnings lists defaults that are unsafe outside local development.
func (c *Config) Warnings() []string {
	var w []string
	if c.DBDriver == "postgres" && c.DatabaseDSN == defaultDSN {
		w = append(w, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == "http://localhost:5173" {
		w = append(w, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if c.Redis.Addr == "" {
		w = append(w, "REDIS_ADDR not set, scheduled detection passes are not coordinated across replicas")
	}
	return w
}
