package grading

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/fields"
	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/omr"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Local runs grading and field extraction in-process.
type Local struct {
	grader    *omr.Grader
	extractor *fields.Extractor
	log       zerolog.Logger
}

// NewLocal creates an in-process backend from the given components.
func NewLocal(grader *omr.Grader, extractor *fields.Extractor) (*Local, error) {
	if grader == nil {
		return nil, fmt.Errorf("omr grader is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("field extractor is required")
	}
	return &Local{
		grader:    grader,
		extractor: extractor,
		log:       logging.WithComponent("grading"),
	}, nil
}

// GradeOMR scores the bubble region in-process.
func (l *Local) GradeOMR(ctx context.Context, img image.Image, roi scan.Region) (*scan.OMRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.grader.Grade(img, roi)
}

// ExtractField reads one text field in-process.
func (l *Local) ExtractField(ctx context.Context, img image.Image, roi scan.Region, field scan.Field) (*scan.FieldResult, error) {
	return l.extractor.Extract(ctx, img, roi, field)
}
