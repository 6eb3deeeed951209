package enhance

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// DecodeError reports an upload whose bytes cannot be decoded as an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Config holds enhancement parameters. The defaults match the values the
// sheet template was calibrated with.
type Config struct {
	BilateralDiameter   int     `mapstructure:"bilateral_diameter"    yaml:"bilateral_diameter"    json:"bilateral_diameter"`
	BilateralSigmaColor float64 `mapstructure:"bilateral_sigma_color" yaml:"bilateral_sigma_color" json:"bilateral_sigma_color"`
	BilateralSigmaSpace float64 `mapstructure:"bilateral_sigma_space" yaml:"bilateral_sigma_space" json:"bilateral_sigma_space"`
	ClipLimit           float64 `mapstructure:"clip_limit"            yaml:"clip_limit"            json:"clip_limit"`
	TileGridSize        int     `mapstructure:"tile_grid_size"        yaml:"tile_grid_size"        json:"tile_grid_size"`
}

// DefaultConfig returns the default enhancement configuration.
func DefaultConfig() Config {
	return Config{
		BilateralDiameter:   9,
		BilateralSigmaColor: 75,
		BilateralSigmaSpace: 75,
		ClipLimit:           2.0,
		TileGridSize:        8,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.BilateralDiameter < 1 {
		return fmt.Errorf("bilateral diameter must be positive, got %d", c.BilateralDiameter)
	}
	if c.BilateralSigmaColor <= 0 || c.BilateralSigmaSpace <= 0 {
		return fmt.Errorf("bilateral sigmas must be positive, got color=%v space=%v",
			c.BilateralSigmaColor, c.BilateralSigmaSpace)
	}
	if c.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be positive, got %v", c.ClipLimit)
	}
	if c.TileGridSize < 1 {
		return fmt.Errorf("tile grid size must be positive, got %d", c.TileGridSize)
	}
	return nil
}

// Enhancer normalizes photographed sheets for downstream analysis:
// edge-preserving smoothing followed by local contrast equalization on
// the luminance channel only.
type Enhancer struct {
	config Config
	log    zerolog.Logger
}

// NewEnhancer creates an Enhancer with the given configuration.
func NewEnhancer(config Config) (*Enhancer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid enhancer config: %w", err)
	}
	return &Enhancer{
		config: config,
		log:    logging.WithComponent("enhance"),
	}, nil
}

// Enhance decodes raw upload bytes and enhances the image. The input
// buffer is never modified; a freshly allocated image is returned.
func (e *Enhancer) Enhance(data []byte) (*image.NRGBA, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	e.log.Debug().
		Str("format", format).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("decoded upload")
	return e.EnhanceImage(img), nil
}

// EnhanceImage enhances an already-decoded image.
func (e *Enhancer) EnhanceImage(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	smoothed := utils.BilateralNRGBA(src,
		e.config.BilateralDiameter,
		e.config.BilateralSigmaColor,
		e.config.BilateralSigmaSpace)
	return equalizeLuminance(smoothed, e.config.ClipLimit, e.config.TileGridSize)
}
