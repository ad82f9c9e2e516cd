package config

import "fmt"

type ObservabilityConfig struct {
	ServiceName string         `koanf:"service_name"`
	Environment string         `koanf:"environment"`
	Logging     LoggingConfig  `koanf:"logging"`
	NewRelic    NewRelicConfig `koanf:"new_relic"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json; empty picks by env
}

// NewRelicConfig enables the agent when LicenseKey is set.
type NewRelicConfig struct {
	LicenseKey       string `koanf:"license_key"`
	AppLogForwarding bool   `koanf:"app_log_forwarding"`
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (o *ObservabilityConfig) Validate() error {
	switch o.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown logging level %q", o.Logging.Level)
	}
	switch o.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown logging format %q", o.Logging.Format)
	}
	return nil
}

// NewRelicEnabled reports whether a New Relic application should be started.
func (o *ObservabilityConfig) NewRelicEnabled() bool {
	return o != nil && o.NewRelic.LicenseKey != ""
}
