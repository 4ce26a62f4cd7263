// Package config provides configuration loading for foldd.
//
// Values come from built-in defaults, then an optional YAML file, then
// FOLDD_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

// Config holds the complete foldd configuration.
type Config struct {
	Folding   FoldingConfig   `koanf:"folding" json:"folding"`
	Logging   LoggingConfig   `koanf:"logging" json:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry"`
	Server    ServerConfig    `koanf:"server" json:"server"`
	Watch     WatchConfig     `koanf:"watch" json:"watch"`
}

// FoldingConfig holds the folding preferences applied to every document.
type FoldingConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled"`
	// CollapseOnInit maps a kind name (definition, block, conditional, other)
	// to its initial collapsed state.
	CollapseOnInit      map[string]bool `koanf:"collapse_on_init" json:"collapse_on_init"`
	CollapseDocComments bool            `koanf:"collapse_doc_comments" json:"collapse_doc_comments"`
}

// LoggingConfig holds the logging options exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled" json:"enabled"`
	Endpoint       string   `koanf:"endpoint" json:"endpoint"`
	Protocol       string   `koanf:"protocol" json:"protocol"`
	ServiceName    string   `koanf:"service_name" json:"service_name"`
	Insecure       bool     `koanf:"insecure" json:"insecure"`
	TLSSkipVerify  bool     `koanf:"tls_skip_verify" json:"tls_skip_verify"`
	SamplingRate   float64  `koanf:"sampling_rate" json:"sampling_rate"`
	ExportInterval Duration `koanf:"export_interval" json:"export_interval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host" json:"host"`
	Port            int      `koanf:"port" json:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WatchConfig throttles re-parses triggered by file changes.
type WatchConfig struct {
	MinInterval Duration `koanf:"min_interval" json:"min_interval"`
	Burst       int      `koanf:"burst" json:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Folding: FoldingConfig{
			Enabled:        true,
			CollapseOnInit: map[string]bool{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			ServiceName:    "foldd",
			Insecure:       true,
			SamplingRate:   1.0,
			ExportInterval: Duration(15 * time.Second),
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Watch: WatchConfig{
			MinInterval: Duration(100 * time.Millisecond),
			Burst:       1,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	for name := range c.Folding.CollapseOnInit {
		if _, err := structure.ParseKind(name); err != nil {
			errs = append(errs, fmt.Errorf("folding.collapse_on_init: %w", err))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not a known level", c.Logging.Level))
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.ServiceName == "" {
			errs = append(errs, errors.New("telemetry.service_name is required"))
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Watch.Burst < 1 {
		errs = append(errs, fmt.Errorf("watch.burst must be >= 1, got %d", c.Watch.Burst))
	}

	return errors.Join(errs...)
}

// CollapseKinds converts Folding.CollapseOnInit to structure kinds.
func (f FoldingConfig) CollapseKinds() (map[structure.Kind]bool, error) {
	kinds := make(map[structure.Kind]bool, len(f.CollapseOnInit))
	for name, collapsed := range f.CollapseOnInit {
		kind, err := structure.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds[kind] = collapsed
	}
	return kinds, nil
}
