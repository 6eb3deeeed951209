package config

import (
	"github.com/MeKo-Tech/bubblegrade/internal/grading"
	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr/tesseract"
	"github.com/MeKo-Tech/bubblegrade/internal/omr"
	"github.com/MeKo-Tech/bubblegrade/internal/pipeline"
	"github.com/MeKo-Tech/bubblegrade/internal/store"
)

// Config is the complete configuration for the bubblegrade application.
// It aggregates the settings of every processing component and supports
// loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Logging settings (level, format, destination)
	Logging logging.Config `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Pipeline settings (enhancement, layout detection, review thresholds)
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Bubble detection and scoring settings
	OMR omr.Config `mapstructure:"omr" yaml:"omr" json:"omr"`

	// Text extraction settings
	OCR tesseract.Config `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Grading backend selection
	Backend BackendConfig `mapstructure:"backend" yaml:"backend" json:"backend"`

	// Scan record store selection
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	// CLI output settings
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// BackendConfig selects how scans are graded: in-process or delegated
// to remote OMR/OCR services.
type BackendConfig struct {
	Mode   string               `mapstructure:"mode" yaml:"mode" json:"mode"`
	Remote grading.RemoteConfig `mapstructure:"remote" yaml:"remote" json:"remote"`
}

// StoreConfig selects where scan records are persisted.
type StoreConfig struct {
	Backend  string               `mapstructure:"backend" yaml:"backend" json:"backend"`
	Postgres store.PostgresConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
}

// OutputConfig contains CLI result formatting settings.
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	File    string `mapstructure:"file" yaml:"file" json:"file"`
	Workers int    `mapstructure:"workers" yaml:"workers" json:"workers"`
}
