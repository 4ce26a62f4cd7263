package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foldd/internal/structure"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Folding.Enabled)
	assert.Empty(t, cfg.Folding.CollapseOnInit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.ExportInterval.Duration())
	assert.Equal(t, "127.0.0.1:9191", cfg.Server.Addr())
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.MinInterval.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown kind", func(c *Config) { c.Folding.CollapseOnInit["loop"] = true }, "collapse_on_init"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "text" }, "logging.format"},
		{"no endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry.endpoint"},
		{"bad protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, "telemetry.protocol"},
		{"sampling rate", func(c *Config) { c.Telemetry.SamplingRate = 1.5 }, "sampling_rate"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"burst", func(c *Config) { c.Watch.Burst = 0 }, "watch.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Watch.Burst = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "watch.burst")
}

func TestFoldingConfig_CollapseKinds(t *testing.T) {
	f := FoldingConfig{CollapseOnInit: map[string]bool{"Definition": true, "block": false}}

	kinds, err := f.CollapseKinds()
	require.NoError(t, err)
	assert.Equal(t, map[structure.Kind]bool{
		structure.KindDefinition: true,
		structure.KindBlock:      false,
	}, kinds)

	f.CollapseOnInit["nope"] = true
	_, err = f.CollapseKinds()
	assert.ErrorIs(t, err, structure.ErrUnknownKind)
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(text))

	js, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"250ms"`, string(js))
}
