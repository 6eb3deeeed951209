// Package grading abstracts where mark detection and field OCR run:
// in-process or delegated to networked services. The two
// implementations are interchangeable and selected by configuration.
package grading

import (
	"context"
	"image"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Backend provides the two extraction capabilities the pipeline needs.
type Backend interface {
	// GradeOMR scores the bubble region.
	GradeOMR(ctx context.Context, img image.Image, roi scan.Region) (*scan.OMRResult, error)
	// ExtractField reads one text field from its region.
	ExtractField(ctx context.Context, img image.Image, roi scan.Region, field scan.Field) (*scan.FieldResult, error)
}
