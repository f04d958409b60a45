package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	External   ExternalConfig   `yaml:"external"`
	Allocation AllocationConfig `yaml:"allocation"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type AppConfig struct {
	Name                  string `yaml:"name"`
	Port                  string `yaml:"port"`
	LogLevel              string `yaml:"log_level"`
	LogPretty             bool   `yaml:"log_pretty"`
	AllocationConcurrency int    `yaml:"allocation_concurrency"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

// ExternalConfig holds the base URLs of the inventory and production services.
type ExternalConfig struct {
	InventoryBaseURL  string        `yaml:"inventory_base_url"`
	ProductionBaseURL string        `yaml:"production_base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

type AllocationConfig struct {
	ReserveFinishedGoods  bool `yaml:"reserve_finished_goods"`
	SequenceRetryAttempts int  `yaml:"sequence_retry_attempts"`
}

// KafkaConfig is optional. With no brokers, events are dropped.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPHeaders  string `yaml:"otlp_headers"`
}

// NewConfig loads .env from the working directory if present, then the
// YAML file named by CONFIG_PATH, then applies environment overrides.
func NewConfig() (*Config, error) {
	return Load(".env", os.Getenv("CONFIG_PATH"))
}

func Load(envPath, yamlPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to load %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if yamlPath != "" {
		file, err := os.Open(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("config: failed to open config file: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: invalid config file %s: %w", yamlPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.App.Name, "APP_NAME")
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.LogLevel, "APP_LOG_LEVEL")

	setString(&c.Postgres.Host, "DB_HOST")
	setString(&c.Postgres.Port, "DB_PORT")
	setString(&c.Postgres.User, "DB_USER")
	setString(&c.Postgres.Password, "DB_PASSWORD")
	setString(&c.Postgres.DBName, "DB_NAME")
	setString(&c.Postgres.SSLMode, "DB_SSLMODE")
	setString(&c.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")

	setString(&c.External.InventoryBaseURL, "INVENTORY_BASE_URL")
	setString(&c.External.ProductionBaseURL, "PRODUCTION_BASE_URL")

	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Telemetry.OTLPHeaders, "OTEL_EXPORTER_OTLP_HEADERS")

	var errs []error
	errs = append(errs,
		setBool(&c.App.LogPretty, "APP_LOG_PRETTY"),
		setInt(&c.App.AllocationConcurrency, "APP_ALLOCATION_CONCURRENCY"),
		setInt32(&c.Postgres.MaxConns, "DB_MAX_CONNS"),
		setInt32(&c.Postgres.MinConns, "DB_MIN_CONNS"),
		setDuration(&c.Postgres.MaxConnLifetime, "DB_MAX_CONN_LIFETIME"),
		setDuration(&c.External.RequestTimeout, "EXTERNAL_REQUEST_TIMEOUT"),
		setBool(&c.Allocation.ReserveFinishedGoods, "ALLOCATION_RESERVE_FINISHED_GOODS"),
		setInt(&c.Allocation.SequenceRetryAttempts, "ALLOCATION_SEQUENCE_RETRY_ATTEMPTS"),
	)
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "order-service"
	}
	if c.App.Port == "" {
		c.App.Port = "8080"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.AllocationConcurrency <= 0 {
		c.App.AllocationConcurrency = 4
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Postgres.MinConns == 0 {
		c.Postgres.MinConns = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 30 * time.Minute
	}
	if c.Postgres.MigrationsPath == "" {
		c.Postgres.MigrationsPath = "migrations"
	}
	if c.External.RequestTimeout == 0 {
		c.External.RequestTimeout = 5 * time.Second
	}
	if c.Allocation.SequenceRetryAttempts <= 0 {
		c.Allocation.SequenceRetryAttempts = 5
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "order-service.events"
	}
}

func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"DB_HOST":             c.Postgres.Host,
		"DB_PORT":             c.Postgres.Port,
		"DB_USER":             c.Postgres.User,
		"DB_NAME":             c.Postgres.DBName,
		"INVENTORY_BASE_URL":  c.External.InventoryBaseURL,
		"PRODUCTION_BASE_URL": c.External.ProductionBaseURL,
	}
	for _, name := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "INVENTORY_BASE_URL", "PRODUCTION_BASE_URL"} {
		if required[name] == "" {
			errs = append(errs, fmt.Errorf("config: %s is required", name))
		}
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, fmt.Errorf("config: DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	return errors.Join(errs...)
}

// DSN returns the key/value connection string used by pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt32(dst *int32, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = int32(n)
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
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
