package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the config directory.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "foldd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `folding:
  enabled: false
  collapse_on_init:
    definition: true
  collapse_doc_comments: true
logging:
  level: debug
  format: json
telemetry:
  enabled: true
  endpoint: collector:4318
  protocol: http/protobuf
  export_interval: 30s
server:
  port: 8088
  shutdown_timeout: 3s
watch:
  min_interval: 250ms
  burst: 3
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.False(t, cfg.Folding.Enabled)
	assert.Equal(t, map[string]bool{"definition": true}, cfg.Folding.CollapseOnInit)
	assert.True(t, cfg.Folding.CollapseDocComments)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Telemetry.Protocol)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ExportInterval.Duration())
	assert.Equal(t, "foldd", cfg.Telemetry.ServiceName, "unset keys keep defaults")
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.MinInterval.Duration())
	assert.Equal(t, 3, cfg.Watch.Burst)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 8088\n", 0600)

	t.Setenv("FOLDD_SERVER_PORT", "9300")
	t.Setenv("FOLDD_TELEMETRY_SERVICE_NAME", "foldd-test")
	t.Setenv("FOLDD_WATCH_MIN_INTERVAL", "1s")
	t.Setenv("FOLDD_FOLDING_ENABLED", "false")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "foldd-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, time.Second, cfg.Watch.MinInterval.Duration())
	assert.False(t, cfg.Folding.Enabled)
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "logging:\n  format: xml\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadWithFile_MalformedYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server: [port\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 8088\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_TooLarge(t *testing.T) {
	dir := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidateConfigPath(t *testing.T) {
	dir := setupTestHome(t)

	for _, p := range []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "sub", "config.yaml"),
		"/etc/foldd/config.yaml",
	} {
		assert.NoError(t, validateConfigPath(p), p)
	}

	for _, p := range []string{
		"/etc/foldd../passwd",
		filepath.Join(dir, "..", "..", "..", "etc", "passwd"),
		"/tmp/config.yaml",
		filepath.Join(dir+"-other", "config.yaml"),
	} {
		assert.Error(t, validateConfigPath(p), p)
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", envKey("FOLDD_SERVER_PORT"))
	assert.Equal(t, "telemetry.sampling_rate", envKey("FOLDD_TELEMETRY_SAMPLING_RATE"))
	assert.Equal(t, "debug", envKey("FOLDD_DEBUG"))
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(filepath.Join(home, ".config", "foldd"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
