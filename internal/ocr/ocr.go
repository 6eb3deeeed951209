// Package ocr defines the text-recognition interface used by the field
// extractors. The production engine lives in the tesseract subpackage;
// keeping the interface free of cgo lets callers test against fakes.
package ocr

import (
	"context"
	"image"
)

// PageSegMode selects how the engine segments the page before
// recognition. Values match the Tesseract modes.
type PageSegMode int

const (
	// PSMAuto lets the engine analyze the full page layout.
	PSMAuto PageSegMode = 3
	// PSMSingleLine treats the image as one line of text.
	PSMSingleLine PageSegMode = 7
)

// Options tunes a single recognition call.
type Options struct {
	// Languages overrides the engine's configured languages.
	Languages []string
	// PageSegMode selects the segmentation mode; zero value means the
	// engine default.
	PageSegMode PageSegMode
	// Whitelist restricts recognition to the given characters.
	Whitelist string
}

// Word is one recognized token. Confidence is reported on the engine's
// native 0-100 scale; negative values mean the engine could not score
// the token.
type Word struct {
	Text       string
	Confidence float64
}

// Result holds the outcome of one recognition call.
type Result struct {
	Text  string
	Words []Word
}

// Engine recognizes text in images.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error)
}
