// Package tesseract implements the ocr.Engine interface on top of the
// system Tesseract installation via gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr"
)

// Config controls the Tesseract engine.
type Config struct {
	// Languages are the trained data sets to load, e.g. "spa".
	Languages []string `mapstructure:"languages" yaml:"languages" json:"languages"`
}

// DefaultConfig returns settings for Spanish exam sheets.
func DefaultConfig() Config {
	return Config{Languages: []string{"spa"}}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one language is required")
	}
	for i, lang := range c.Languages {
		if lang == "" {
			return fmt.Errorf("languages[%d] is empty", i)
		}
	}
	return nil
}

// Engine runs OCR through gosseract. Each call uses a fresh client, so
// the engine is safe for concurrent use.
type Engine struct {
	config Config
	log    zerolog.Logger
}

// NewEngine creates a Tesseract-backed OCR engine.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ocr config: %w", err)
	}
	return &Engine{
		config: config,
		log:    logging.WithComponent("ocr"),
	}, nil
}

// Recognize runs Tesseract over img with the given options and returns
// the recognized text plus per-word confidences.
func (e *Engine) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (*ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("recognize: nil image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	langs := opts.Languages
	if len(langs) == 0 {
		langs = e.config.Languages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if opts.PageSegMode != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	words := extractWords(client)
	e.log.Debug().
		Int("words", len(words)).
		Int("text_length", len(text)).
		Msg("recognition finished")
	return &ocr.Result{Text: text, Words: words}, nil
}

// extractWords reads per-word boxes from the client. Recognition
// without word boxes is still usable, so errors degrade to no words.
func extractWords(client *gosseract.Client) []ocr.Word {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{Text: b.Word, Confidence: b.Confidence})
	}
	return words
}
