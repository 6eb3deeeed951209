package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/bubblegrade/internal/grading"
	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr/tesseract"
	"github.com/MeKo-Tech/bubblegrade/internal/omr"
	"github.com/MeKo-Tech/bubblegrade/internal/pipeline"
	"github.com/MeKo-Tech/bubblegrade/internal/store"
)

// Grading backend modes.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Scan record store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// CLI output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultConfig returns a complete configuration with the defaults of
// every component: local grading, in-memory store, text output.
func DefaultConfig() Config {
	return Config{
		Logging:  logging.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		OMR:      omr.DefaultConfig(),
		OCR:      tesseract.DefaultConfig(),
		Backend: BackendConfig{
			Mode:   BackendLocal,
			Remote: grading.DefaultRemoteConfig(),
		},
		Store: StoreConfig{
			Backend:  StoreMemory,
			Postgres: store.PostgresConfig{MaxConns: 4},
		},
		Output: OutputConfig{
			Format:  FormatText,
			Workers: 2,
		},
	}
}

// Validate checks the complete configuration for consistency. Sections
// that only apply to an unselected backend or store are not validated,
// so a default config with empty remote URLs is valid.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.OMR.Validate(); err != nil {
		return fmt.Errorf("omr: %w", err)
	}
	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if err := c.validateBackend(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.validateStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.validateOutput(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Mode {
	case BackendLocal:
		return nil
	case BackendRemote:
		return c.Backend.Remote.Validate()
	default:
		return fmt.Errorf("invalid mode: %s (must be one of: %s)",
			c.Backend.Mode, strings.Join([]string{BackendLocal, BackendRemote}, ", "))
	}
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreMemory:
		return nil
	case StorePostgres:
		return c.Store.Postgres.Validate()
	default:
		return fmt.Errorf("invalid backend: %s (must be one of: %s)",
			c.Store.Backend, strings.Join([]string{StoreMemory, StorePostgres}, ", "))
	}
}

func (c *Config) validateOutput() error {
	validFormats := []string{FormatText, FormatJSON}
	if !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Output.Workers)
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
