package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCore_ConsoleOnly(t *testing.T) {
	cfg := NewDefaultConfig()

	core, err := newCore(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)
}

func TestNewCore_OTELWithoutProviderFallsBackToConsole(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = true

	core, err := newCore(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)
}

func TestNewCore_NoUsableOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Console = false
	cfg.Output.OTEL = true

	_, err := newCore(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}
