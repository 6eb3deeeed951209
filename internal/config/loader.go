package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "bubblegrade"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BUBBLEGRADE"
)

// Loader handles loading configuration from files, environment
// variables, defaults, and bound command-line flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance so cobra flag bindings are visible
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on a dedicated viper instance. Used by
// tests to avoid mutating global state.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads configuration from the search paths, environment, and
// defaults, then validates the result. A missing config file is not an
// error; defaults and environment variables apply.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile reads configuration from a specific file path. An empty
// path falls back to the standard search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	// Current directory
	l.v.AddConfigPath(".")

	// User's home directory
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	// System-wide configuration
	l.v.AddConfigPath("/etc/bubblegrade")

	// XDG config directory
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "bubblegrade"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "bubblegrade"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
// BUBBLEGRADE_STORE_BACKEND overrides store.backend, and so on.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers default values for all configuration keys, so
// environment overrides work even without a config file.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Logging defaults
	l.v.SetDefault("logging.level", defaults.Logging.Level)
	l.v.SetDefault("logging.format", defaults.Logging.Format)
	l.v.SetDefault("logging.time_format", defaults.Logging.TimeFormat)
	l.v.SetDefault("logging.output", defaults.Logging.Output)

	// Enhancement defaults
	l.v.SetDefault("pipeline.enhance.bilateral_diameter", defaults.Pipeline.Enhance.BilateralDiameter)
	l.v.SetDefault("pipeline.enhance.bilateral_sigma_color", defaults.Pipeline.Enhance.BilateralSigmaColor)
	l.v.SetDefault("pipeline.enhance.bilateral_sigma_space", defaults.Pipeline.Enhance.BilateralSigmaSpace)
	l.v.SetDefault("pipeline.enhance.clip_limit", defaults.Pipeline.Enhance.ClipLimit)
	l.v.SetDefault("pipeline.enhance.tile_grid_size", defaults.Pipeline.Enhance.TileGridSize)

	// Layout defaults
	l.v.SetDefault("pipeline.layout.canny_low", defaults.Pipeline.Layout.CannyLow)
	l.v.SetDefault("pipeline.layout.canny_high", defaults.Pipeline.Layout.CannyHigh)
	l.v.SetDefault("pipeline.layout.approx_tolerance", defaults.Pipeline.Layout.ApproxTolerance)
	l.v.SetDefault("pipeline.layout.template.margin_x", defaults.Pipeline.Layout.Template.MarginX)
	l.v.SetDefault("pipeline.layout.template.field_width", defaults.Pipeline.Layout.Template.FieldWidth)
	l.v.SetDefault("pipeline.layout.template.nombre_top", defaults.Pipeline.Layout.Template.NombreTop)
	l.v.SetDefault("pipeline.layout.template.nombre_height", defaults.Pipeline.Layout.Template.NombreHeight)
	l.v.SetDefault("pipeline.layout.template.curp_top", defaults.Pipeline.Layout.Template.CURPTop)
	l.v.SetDefault("pipeline.layout.template.curp_height", defaults.Pipeline.Layout.Template.CURPHeight)
	l.v.SetDefault("pipeline.layout.template.omr_top", defaults.Pipeline.Layout.Template.OMRTop)

	// Review threshold defaults
	l.v.SetDefault("pipeline.review.nombre_threshold", defaults.Pipeline.Review.NombreThreshold)
	l.v.SetDefault("pipeline.review.curp_threshold", defaults.Pipeline.Review.CURPThreshold)

	// OMR defaults
	l.v.SetDefault("omr.accumulator_scale", defaults.OMR.AccumulatorScale)
	l.v.SetDefault("omr.min_distance", defaults.OMR.MinDistance)
	l.v.SetDefault("omr.canny_threshold", defaults.OMR.CannyThreshold)
	l.v.SetDefault("omr.accumulator_threshold", defaults.OMR.AccumulatorThreshold)
	l.v.SetDefault("omr.min_radius", defaults.OMR.MinRadius)
	l.v.SetDefault("omr.max_radius", defaults.OMR.MaxRadius)
	l.v.SetDefault("omr.mark_threshold", defaults.OMR.MarkThreshold)
	l.v.SetDefault("omr.answer_key", defaults.OMR.AnswerKey)

	// OCR defaults
	l.v.SetDefault("ocr.languages", defaults.OCR.Languages)

	// Backend defaults
	l.v.SetDefault("backend.mode", defaults.Backend.Mode)
	l.v.SetDefault("backend.remote.omr_url", defaults.Backend.Remote.OMRURL)
	l.v.SetDefault("backend.remote.ocr_url", defaults.Backend.Remote.OCRURL)
	l.v.SetDefault("backend.remote.timeout", defaults.Backend.Remote.Timeout)

	// Store defaults
	l.v.SetDefault("store.backend", defaults.Store.Backend)
	l.v.SetDefault("store.postgres.url", defaults.Store.Postgres.URL)
	l.v.SetDefault("store.postgres.max_conns", defaults.Store.Postgres.MaxConns)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.workers", defaults.Output.Workers)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a config file populated with the
// default values.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWith(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = "bubblegrade.yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "bubblegrade"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "bubblegrade"))
	}

	paths = append(paths, "/etc/bubblegrade")

	return paths
}
