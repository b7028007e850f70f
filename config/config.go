/*
Package config loads runtime configuration for the payroll server.

SOURCES (later wins):
  1. Built-in defaults
  2. YAML file (optional; path from -config or PAYROLL_CONFIG)
  3. .env file in the working directory (optional)
  4. Environment variables
  5. Command-line flags (applied by cmd/server)

ENVIRONMENT:
  PAYROLL_HTTP_ADDR    server.addr
  PAYROLL_DB_DRIVER    database.driver (sqlite | postgres)
  PAYROLL_SQLITE_PATH  database.sqlite_path
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE
  KAFKA_BROKERS        comma separated; empty disables publishing
  KAFKA_TOPIC          kafka.topic
  LOG_LEVEL            debug | info | warn | error
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Payroll  PayrollConfig  `yaml:"payroll"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`
	ReadTimeoutRaw  string        `yaml:"read_timeout"`
	WriteTimeoutRaw string        `yaml:"write_timeout"`
	ShutdownRaw     string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the store. Postgres fields are ignored for sqlite.
type DatabaseConfig struct {
	Driver             string        `yaml:"driver"`
	SQLitePath         string        `yaml:"sqlite_path"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

type PayrollConfig struct {
	BatchConcurrency     int           `yaml:"batch_concurrency"`
	SchedulerEnabled     bool          `yaml:"scheduler_enabled"`
	SchedulerInterval    time.Duration `yaml:"-"`
	SchedulerIntervalRaw string        `yaml:"scheduler_interval"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ReadTimeoutRaw:  "15s",
			WriteTimeoutRaw: "30s",
			ShutdownRaw:     "30s",
		},
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			SQLitePath: "payroll.db",
			Port:       5432,
			SSLMode:    "disable",
		},
		Payroll: PayrollConfig{
			BatchConcurrency:     8,
			SchedulerIntervalRaw: "1h",
		},
		Kafka: KafkaConfig{Topic: "payroll.compensation"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "PAYROLL_HTTP_ADDR")
	setString(&c.Database.Driver, "PAYROLL_DB_DRIVER")
	setString(&c.Database.SQLitePath, "PAYROLL_SQLITE_PATH")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSL_MODE")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid DB_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

func (c *Config) validateAndNormalize() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must be set")
	}
	var err error
	if c.Server.ReadTimeout, err = parseDurationAllowEmpty(c.Server.ReadTimeoutRaw); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if c.Server.WriteTimeout, err = parseDurationAllowEmpty(c.Server.WriteTimeoutRaw); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if c.Server.ShutdownTimeout, err = parseDurationAllowEmpty(c.Server.ShutdownRaw); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if c.Payroll.BatchConcurrency <= 0 {
		c.Payroll.BatchConcurrency = 8
	}
	if c.Payroll.SchedulerInterval, err = parseDurationAllowEmpty(c.Payroll.SchedulerIntervalRaw); err != nil {
		return fmt.Errorf("config: payroll.scheduler_interval: %w", err)
	}
	if c.Payroll.SchedulerEnabled && c.Payroll.SchedulerInterval <= 0 {
		return fmt.Errorf("config: payroll.scheduler_interval must be positive when the scheduler is enabled")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic must be set when brokers are configured")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case DriverSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("config: database.sqlite_path must be set")
		}
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("config: database.driver %q is not sqlite or postgres", d.Driver)
	}

	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// DSN is the pgx / golang-migrate connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", level)
}
