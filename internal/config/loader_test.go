package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLoader returns a loader on a private viper instance so tests
// do not leak state through the global one.
func newTestLoader() *Loader {
	return NewLoaderWith(viper.New())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, BackendLocal, cfg.Backend.Mode)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Output.Workers)
}

func TestLoadFindsFileInCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "logging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bubblegrade.yaml"), []byte(content), 0o644))

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bubblegrade.yaml")

	yamlContent := `
logging:
  level: debug
pipeline:
  review:
    nombre_threshold: 0.7
omr:
  answer_key: [A, B, C]
backend:
  mode: remote
  remote:
    omr_url: http://127.0.0.1:9090/omr
    ocr_url: http://127.0.0.1:9090/ocr
    timeout: 30s
output:
  format: json
`
	require.NoError(t, os.WriteFile(configFile, []byte(yamlContent), 0o644))

	cfg, err := newTestLoader().LoadWithFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.InDelta(t, 0.7, cfg.Pipeline.Review.NombreThreshold, 1e-9)
	assert.Equal(t, []string{"A", "B", "C"}, cfg.OMR.AnswerKey)
	assert.Equal(t, BackendRemote, cfg.Backend.Mode)
	assert.Equal(t, 30*time.Second, cfg.Backend.Remote.Timeout)
	assert.Equal(t, FormatJSON, cfg.Output.Format)

	// Untouched keys keep their defaults.
	assert.InDelta(t, 50, cfg.Pipeline.Layout.CannyLow, 1e-9)
	assert.InDelta(t, 0.9, cfg.Pipeline.Review.CURPThreshold, 1e-9)
}

func TestLoadWithFileMissing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestLoadWithFileInvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bubblegrade.yaml")
	bad := "logging:\n  level: debug\n   broken: [unclosed\n"
	require.NoError(t, os.WriteFile(configFile, []byte(bad), 0o644))

	_, err := newTestLoader().LoadWithFile(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadWithFileValidationFailure(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bubblegrade.yaml")
	content := "output:\n  format: csv\n"
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	_, err := newTestLoader().LoadWithFile(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "invalid format: csv")
}

func TestLoadWithFileEmptyPathUsesSearch(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := newTestLoader().LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
}

func TestEnvironmentVariableOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BUBBLEGRADE_LOGGING_LEVEL", "debug")
	t.Setenv("BUBBLEGRADE_OUTPUT_FORMAT", "json")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
}

func TestEnvironmentVariableNestedKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BUBBLEGRADE_PIPELINE_REVIEW_NOMBRE_THRESHOLD", "0.75")
	t.Setenv("BUBBLEGRADE_BACKEND_REMOTE_TIMEOUT", "30s")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, cfg.Pipeline.Review.NombreThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Backend.Remote.Timeout)
}

func TestFileOverridesDefaultsEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "logging:\n  level: warn\noutput:\n  workers: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bubblegrade.yaml"), []byte(content), 0o644))
	t.Setenv("BUBBLEGRADE_LOGGING_LEVEL", "error")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level) // env beats file
	assert.Equal(t, 8, cfg.Output.Workers)      // file beats default
	assert.Equal(t, FormatText, cfg.Output.Format)
}

func TestGetSetConfigValues(t *testing.T) {
	loader := newTestLoader()
	loader.Set("output.format", "json")
	assert.Equal(t, "json", loader.Get("output.format"))
}

func TestGetConfigFileUsed(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bubblegrade.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("logging:\n  level: info\n"), 0o644))

	loader := newTestLoader()
	_, err := loader.LoadWithFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, configFile, loader.GetConfigFileUsed())
}

func TestGetResolvedConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	loader := newTestLoader()
	_, err := loader.Load()
	require.NoError(t, err)

	settings := loader.GetResolvedConfig()
	assert.Contains(t, settings, "logging")
	assert.Contains(t, settings, "omr")
	assert.Contains(t, settings, "store")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bubblegrade.yaml")
	require.NoError(t, GenerateDefaultConfigFile(filename))

	cfg, err := newTestLoader().LoadWithFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, BackendLocal, cfg.Backend.Mode)
	assert.Equal(t, []string{"spa"}, cfg.OCR.Languages)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/bubblegrade")
}
