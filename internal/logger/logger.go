package logger

import (
	"io"
	"os"
	"time"

	"github.com/akave-ai/servicelogs/internal/config"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// New builds the service logger. Development environments get a console
// writer on stderr; everything else writes JSON lines to stdout.
func New(cfg *config.Config) zerolog.Logger {
	return build(cfg, os.Stdout, os.Stderr)
}

func build(cfg *config.Config, jsonOut, consoleOut io.Writer) zerolog.Logger {
	obs := cfg.Observability
	if obs == nil {
		obs = config.DefaultObservabilityConfig()
	}

	level, err := zerolog.ParseLevel(obs.Logging.Level)
	if err != nil || obs.Logging.Level == "" {
		level = zerolog.InfoLevel
	}

	out := jsonOut
	format := obs.Logging.Format
	if format == "" && !cfg.IsDevelopment() {
		format = "json"
	}
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: consoleOut, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", obs.ServiceName).
		Str("env", cfg.Primary.Env).
		Logger()
}

// NewRelic starts a New Relic application when a license key is configured.
// It returns nil, nil when the agent is disabled.
func NewRelic(cfg *config.Config) (*newrelic.Application, error) {
	if !cfg.Observability.NewRelicEnabled() {
		return nil, nil
	}
	return newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.Observability.ServiceName),
		newrelic.ConfigLicense(cfg.Observability.NewRelic.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(cfg.Observability.NewRelic.AppLogForwarding),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
}
