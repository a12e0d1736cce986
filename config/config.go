package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. HOTEL_TEMPORAL_HOST_PORT.
const EnvPrefix = "HOTEL"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Temporal TemporalConfig `yaml:"temporal"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir" split_words:"true"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type TemporalConfig struct {
	HostPort               string `yaml:"host_port" split_words:"true"`
	Namespace              string `yaml:"namespace"`
	TaskQueue              string `yaml:"task_queue" split_words:"true"`
	StartTimeoutSeconds    int    `yaml:"start_timeout_seconds" split_words:"true"`
	ResultTimeoutSeconds   int    `yaml:"result_timeout_seconds" split_words:"true"`
	SignalTimeoutSeconds   int    `yaml:"signal_timeout_seconds" split_words:"true"`
	DescribeTimeoutSeconds int    `yaml:"describe_timeout_seconds" split_words:"true"`
}

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
}

type BookingConfig struct {
	IdempotencyTTLMinutes int `yaml:"idempotency_ttl_minutes" envconfig:"IDEMPOTENCY_TTL_MINUTES"`
}

type WorkerConfig struct {
	ReconcileIntervalMinutes int `yaml:"reconcile_interval_minutes" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the YAML file at path, applies HOTEL_* environment
// overrides and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = "localhost:7233"
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = "default"
	}
	if c.Temporal.TaskQueue == "" {
		c.Temporal.TaskQueue = "hotel-bookings"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverFile
	}
	if c.Store.Driver == StoreDriverFile && c.Store.Path == "" {
		c.Store.Path = "db.json"
	}
	if c.Booking.IdempotencyTTLMinutes == 0 {
		c.Booking.IdempotencyTTLMinutes = 24 * 60
	}
	if c.Worker.ReconcileIntervalMinutes == 0 {
		c.Worker.ReconcileIntervalMinutes = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverFile, StoreDriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Worker.ReconcileIntervalMinutes <= 0 {
		return fmt.Errorf("worker.reconcile_interval_minutes must be positive, got %d", c.Worker.ReconcileIntervalMinutes)
	}
	if c.Booking.IdempotencyTTLMinutes <= 0 {
		return fmt.Errorf("booking.idempotency_ttl_minutes must be positive, got %d", c.Booking.IdempotencyTTLMinutes)
	}
	t := c.Temporal
	for name, v := range map[string]int{
		"start_timeout_seconds":    t.StartTimeoutSeconds,
		"result_timeout_seconds":   t.ResultTimeoutSeconds,
		"signal_timeout_seconds":   t.SignalTimeoutSeconds,
		"describe_timeout_seconds": t.DescribeTimeoutSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("temporal.%s must not be negative, got %d", name, v)
		}
	}
	return nil
}
