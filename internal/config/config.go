package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SERVICELOGS_"

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig durations are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	RequestTimeout     int      `koanf:"request_timeout" validate:"required,min=1"`
	ShutdownTimeout    int      `koanf:"shutdown_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig selects the storage backend. For mongo, Name is the database
// and Collection the collection; postgres always uses the logs table.
type DatabaseConfig struct {
	Driver          string `koanf:"driver" validate:"required,oneof=mongo postgres memory"`
	URL             string `koanf:"url" validate:"required_unless=Driver memory"`
	Name            string `koanf:"name" validate:"required_if=Driver mongo"`
	Collection      string `koanf:"collection" validate:"required_if=Driver mongo"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"min=1"`
	MinConns        int    `koanf:"min_conns" validate:"min=0"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"min=0"`
	ConnectTimeout  int    `koanf:"connect_timeout" validate:"min=1"`
}

// Default returns the configuration used when no environment overrides it.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:               "3000",
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
			RequestTimeout:     10,
			ShutdownTimeout:    10,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "mongo",
			URL:             "mongodb://localhost:27017/service-logs",
			Name:            "service-logs",
			Collection:      "logs",
			MaxOpenConns:    25,
			MinConns:        0,
			ConnMaxLifetime: 3600,
			ConnMaxIdleTime: 300,
			ConnectTimeout:  10,
		},
	}
}

// LoadConfig loads the configuration from an optional .env file and
// SERVICELOGS_* environment variables. Nested keys use a double underscore:
// SERVICELOGS_SERVER__PORT sets server.port.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
		if strings.HasSuffix(key, "cors_allowed_origins") {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env variables: %w", err)
	}

	// defaults survive for every key the environment leaves unset
	mainConfig := Default()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.ServiceName = "servicelogs"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}
	return mainConfig, nil
}

// Validate checks struct tags and the observability section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("invalid observability config: %w", err)
		}
	}
	return nil
}

// IsDevelopment reports whether the service runs on a developer machine.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Primary.Env) {
	case "development", "dev", "local":
		return true
	}
	return false
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
