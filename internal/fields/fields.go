// Package fields extracts the handwritten name and the printed CURP
// code from their sheet regions via OCR.
package fields

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// curpPattern is the CURP layout: four letters, six date digits, the
// sex marker, five letters, two digits.
var curpPattern = regexp.MustCompile(`^[A-Z]{4}\d{6}[HM][A-Z]{5}\d{2}$`)

// curpWhitelist restricts CURP recognition to the characters the code
// can contain.
const curpWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Smoothing parameters for the handwritten name region.
const (
	nombreBilateralDiameter   = 9
	nombreBilateralSigmaColor = 75
	nombreBilateralSigmaSpace = 75
)

// ExtractionError reports an OCR failure for a specific field.
type ExtractionError struct {
	Field scan.Field
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor reads text fields from sheet regions.
type Extractor struct {
	engine ocr.Engine
	log    zerolog.Logger
}

// NewExtractor creates a field extractor backed by the given OCR
// engine.
func NewExtractor(engine ocr.Engine) (*Extractor, error) {
	if engine == nil {
		return nil, fmt.Errorf("ocr engine is required")
	}
	return &Extractor{
		engine: engine,
		log:    logging.WithComponent("fields"),
	}, nil
}

// Extract dispatches to the extractor for the given field kind.
func (e *Extractor) Extract(ctx context.Context, img image.Image, roi scan.Region, field scan.Field) (*scan.FieldResult, error) {
	switch field {
	case scan.FieldNombre:
		return e.ExtractNombre(ctx, img, roi)
	case scan.FieldCURP:
		return e.ExtractCURP(ctx, img, roi)
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
}

// ExtractNombre reads the handwritten name line. The region is smoothed
// edge-preservingly before recognition; confidence is the mean of the
// non-negative word confidences.
func (e *Extractor) ExtractNombre(ctx context.Context, img image.Image, roi scan.Region) (*scan.FieldResult, error) {
	gray, err := cropGray(img, roi, scan.FieldNombre)
	if err != nil {
		return nil, err
	}
	smoothed := utils.BilateralGray(gray, nombreBilateralDiameter, nombreBilateralSigmaColor, nombreBilateralSigmaSpace)

	result, err := e.engine.Recognize(ctx, smoothed, ocr.Options{PageSegMode: ocr.PSMSingleLine})
	if err != nil {
		return nil, &ExtractionError{Field: scan.FieldNombre, Err: err}
	}

	text := NormalizeName(result.Text)
	confidence := meanConfidence(result.Words)
	e.log.Debug().
		Str("field", string(scan.FieldNombre)).
		Float64("confidence", confidence).
		Int("words", len(result.Words)).
		Msg("field extracted")
	return &scan.FieldResult{Text: text, Confidence: confidence}, nil
}

// ExtractCURP reads the printed CURP code. The region is binarized with
// a histogram-derived global threshold before recognition; a format
// mismatch forces the confidence to zero no matter what the engine
// reported.
func (e *Extractor) ExtractCURP(ctx context.Context, img image.Image, roi scan.Region) (*scan.FieldResult, error) {
	gray, err := cropGray(img, roi, scan.FieldCURP)
	if err != nil {
		return nil, err
	}
	binary := utils.Binarize(gray, utils.OtsuThreshold(gray))

	result, err := e.engine.Recognize(ctx, binary, ocr.Options{
		PageSegMode: ocr.PSMSingleLine,
		Whitelist:   curpWhitelist,
	})
	if err != nil {
		return nil, &ExtractionError{Field: scan.FieldCURP, Err: err}
	}

	text := NormalizeCURP(result.Text)
	confidence := meanConfidence(result.Words)
	if !ValidCURP(text) {
		confidence = 0
	}
	e.log.Debug().
		Str("field", string(scan.FieldCURP)).
		Float64("confidence", confidence).
		Bool("valid_format", ValidCURP(text)).
		Msg("field extracted")
	return &scan.FieldResult{Text: text, Confidence: confidence}, nil
}

// ValidCURP reports whether s matches the 18-character CURP layout.
func ValidCURP(s string) bool {
	return curpPattern.MatchString(s)
}

func cropGray(img image.Image, roi scan.Region, field scan.Field) (*image.Gray, error) {
	if img == nil {
		return nil, &ExtractionError{Field: field, Err: fmt.Errorf("nil image")}
	}
	cropped := utils.CropImageRect(img, roi.Rect())
	if cropped.Bounds().Empty() {
		return nil, &ExtractionError{Field: field, Err: fmt.Errorf("empty region %dx%d", roi.Width, roi.Height)}
	}
	return utils.ToGray(cropped), nil
}

// NormalizeName canonicalizes a recognized name line: NFC form,
// collapsed whitespace, trimmed ends.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NormalizeCURP removes every whitespace rune from a recognized CURP,
// inner ones included.
func NormalizeCURP(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// meanConfidence averages the non-negative word confidences on a 0-1
// scale. Words the engine could not score are excluded; no scorable
// words means zero confidence.
func meanConfidence(words []ocr.Word) float64 {
	sum, n := 0.0, 0
	for _, w := range words {
		if w.Confidence < 0 {
			continue
		}
		sum += w.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 100
}
