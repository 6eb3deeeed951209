// Package pipeline orchestrates the processing of one uploaded sheet:
// enhancement, layout detection, concurrent grading and field
// extraction, and the merge into a final scan record.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/enhance"
	"github.com/MeKo-Tech/bubblegrade/internal/grading"
	"github.com/MeKo-Tech/bubblegrade/internal/layout"
	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/notify"
	"github.com/MeKo-Tech/bubblegrade/internal/store"
)

// ReviewConfig holds the confidence thresholds below which an extracted
// field is flagged for human review.
type ReviewConfig struct {
	NombreThreshold float64 `mapstructure:"nombre_threshold" yaml:"nombre_threshold" json:"nombre_threshold"`
	CURPThreshold   float64 `mapstructure:"curp_threshold"   yaml:"curp_threshold"   json:"curp_threshold"`
}

// DefaultReviewConfig returns the thresholds the sheet template was
// calibrated with.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		NombreThreshold: 0.8,
		CURPThreshold:   0.9,
	}
}

// Validate checks the configuration for invalid values.
func (c ReviewConfig) Validate() error {
	if c.NombreThreshold < 0 || c.NombreThreshold > 1 {
		return fmt.Errorf("nombre threshold must be in [0,1], got %v", c.NombreThreshold)
	}
	if c.CURPThreshold < 0 || c.CURPThreshold > 1 {
		return fmt.Errorf("curp threshold must be in [0,1], got %v", c.CURPThreshold)
	}
	return nil
}

// Config holds configuration for the scan pipeline and its components.
type Config struct {
	Enhance enhance.Config `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
	Layout  layout.Config  `mapstructure:"layout"  yaml:"layout"  json:"layout"`
	Review  ReviewConfig   `mapstructure:"review"  yaml:"review"  json:"review"`
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Enhance: enhance.DefaultConfig(),
		Layout:  layout.DefaultConfig(),
		Review:  DefaultReviewConfig(),
	}
}

// Validate checks the full configuration tree.
func (c Config) Validate() error {
	if err := c.Enhance.Validate(); err != nil {
		return fmt.Errorf("enhance: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	return nil
}

// Builder constructs a Controller with fluent configuration.
type Builder struct {
	cfg      Config
	backend  grading.Backend
	store    store.Store
	notifier notify.Notifier
	registry prometheus.Registerer
}

// NewBuilder creates a new controller builder with defaults: in-memory
// persistence, no notifications, default Prometheus registry.
func NewBuilder() *Builder {
	return &Builder{
		cfg:      DefaultConfig(),
		notifier: notify.Nop{},
		registry: prometheus.DefaultRegisterer,
	}
}

// WithConfig replaces the whole pipeline configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEnhanceConfig overrides the enhancement parameters.
func (b *Builder) WithEnhanceConfig(cfg enhance.Config) *Builder {
	b.cfg.Enhance = cfg
	return b
}

// WithLayoutConfig overrides the layout detection parameters.
func (b *Builder) WithLayoutConfig(cfg layout.Config) *Builder {
	b.cfg.Layout = cfg
	return b
}

// WithReviewThresholds overrides the review thresholds (if in range).
func (b *Builder) WithReviewThresholds(nombre, curp float64) *Builder {
	if nombre >= 0 && nombre <= 1 {
		b.cfg.Review.NombreThreshold = nombre
	}
	if curp >= 0 && curp <= 1 {
		b.cfg.Review.CURPThreshold = curp
	}
	return b
}

// WithBackend sets the grading backend. Required.
func (b *Builder) WithBackend(backend grading.Backend) *Builder {
	b.backend = backend
	return b
}

// WithStore sets the persistence layer. Defaults to in-memory.
func (b *Builder) WithStore(s store.Store) *Builder {
	if s != nil {
		b.store = s
	}
	return b
}

// WithNotifier sets the event sink. Defaults to discarding events.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	if n != nil {
		b.notifier = n
	}
	return b
}

// WithMetricsRegistry sets the Prometheus registry metrics register
// into. Tests pass a fresh registry to avoid duplicate registration.
func (b *Builder) WithMetricsRegistry(reg prometheus.Registerer) *Builder {
	if reg != nil {
		b.registry = reg
	}
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Build initializes the pipeline components.
func (b *Builder) Build() (*Controller, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("grading backend is required")
	}

	enhancer, err := enhance.NewEnhancer(b.cfg.Enhance)
	if err != nil {
		return nil, fmt.Errorf("init enhancer: %w", err)
	}
	detector, err := layout.NewDetector(b.cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("init layout detector: %w", err)
	}

	st := b.store
	if st == nil {
		st = store.NewMemory()
	}

	return &Controller{
		config:   b.cfg,
		enhancer: enhancer,
		layout:   detector,
		backend:  b.backend,
		store:    st,
		notifier: b.notifier,
		metrics:  newMetrics(b.registry),
		log:      logging.WithComponent("pipeline"),
	}, nil
}

// Controller wires together the scan processing stages with
// persistence and notification.
type Controller struct {
	config   Config
	enhancer *enhance.Enhancer
	layout   *layout.Detector
	backend  grading.Backend
	store    store.Store
	notifier notify.Notifier
	metrics  *metrics
	log      zerolog.Logger
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.config }
