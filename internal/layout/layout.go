// Package layout locates the answer-sheet boundary in a photographed
// scan and derives the fixed regions of interest (name field, CURP
// field, bubble grid) from it. When no clean quadrilateral outline is
// found the full frame is used and the result is marked as a fallback.
package layout

import (
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// Template holds the region proportions of the printed sheet, expressed
// as fractions of the detected boundary rectangle.
type Template struct {
	MarginX      float64 `mapstructure:"margin_x" yaml:"margin_x" json:"margin_x"`
	FieldWidth   float64 `mapstructure:"field_width" yaml:"field_width" json:"field_width"`
	NombreTop    float64 `mapstructure:"nombre_top" yaml:"nombre_top" json:"nombre_top"`
	NombreHeight float64 `mapstructure:"nombre_height" yaml:"nombre_height" json:"nombre_height"`
	CURPTop      float64 `mapstructure:"curp_top" yaml:"curp_top" json:"curp_top"`
	CURPHeight   float64 `mapstructure:"curp_height" yaml:"curp_height" json:"curp_height"`
	OMRTop       float64 `mapstructure:"omr_top" yaml:"omr_top" json:"omr_top"`
}

// DefaultTemplate matches the standard exam sheet print.
func DefaultTemplate() Template {
	return Template{
		MarginX:      0.05,
		FieldWidth:   0.90,
		NombreTop:    0.05,
		NombreHeight: 0.10,
		CURPTop:      0.17,
		CURPHeight:   0.10,
		OMRTop:       0.30,
	}
}

// Validate checks that the proportions describe regions inside the
// boundary.
func (t Template) Validate() error {
	if t.MarginX < 0 || t.MarginX >= 0.5 {
		return fmt.Errorf("margin_x must be in [0, 0.5), got %g", t.MarginX)
	}
	if t.FieldWidth <= 0 || t.MarginX+t.FieldWidth > 1 {
		return fmt.Errorf("field_width %g does not fit next to margin %g", t.FieldWidth, t.MarginX)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"nombre_top", t.NombreTop},
		{"nombre_height", t.NombreHeight},
		{"curp_top", t.CURPTop},
		{"curp_height", t.CURPHeight},
		{"omr_top", t.OMRTop},
	} {
		if f.v <= 0 || f.v >= 1 {
			return fmt.Errorf("%s must be in (0, 1), got %g", f.name, f.v)
		}
	}
	if t.NombreTop+t.NombreHeight > t.CURPTop {
		return fmt.Errorf("nombre region overlaps curp region")
	}
	if t.CURPTop+t.CURPHeight > t.OMRTop {
		return fmt.Errorf("curp region overlaps omr region")
	}
	return nil
}

// Config controls boundary detection.
type Config struct {
	CannyLow        float64  `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh       float64  `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	ApproxTolerance float64  `mapstructure:"approx_tolerance" yaml:"approx_tolerance" json:"approx_tolerance"`
	Template        Template `mapstructure:"template" yaml:"template" json:"template"`
}

// DefaultConfig returns detection settings tuned for phone photographs
// of A4 sheets.
func DefaultConfig() Config {
	return Config{
		CannyLow:        50,
		CannyHigh:       150,
		ApproxTolerance: 0.02,
		Template:        DefaultTemplate(),
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.CannyLow <= 0 {
		return fmt.Errorf("canny_low must be positive, got %g", c.CannyLow)
	}
	if c.CannyHigh <= c.CannyLow {
		return fmt.Errorf("canny_high %g must exceed canny_low %g", c.CannyHigh, c.CannyLow)
	}
	if c.ApproxTolerance <= 0 || c.ApproxTolerance >= 1 {
		return fmt.Errorf("approx_tolerance must be in (0, 1), got %g", c.ApproxTolerance)
	}
	return c.Template.Validate()
}

// Detector finds the sheet boundary and slices it into regions.
type Detector struct {
	config Config
	log    zerolog.Logger
}

// NewDetector creates a region detector with the given configuration.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout config: %w", err)
	}
	return &Detector{
		config: config,
		log:    logging.WithComponent("layout"),
	}, nil
}

// Detect locates the sheet boundary in img and returns the region set.
// Detection never fails outright: when the outline cannot be reduced to
// a quadrilateral the full frame is used and Fallback is set.
func (d *Detector) Detect(img image.Image) (*scan.RegionSet, error) {
	if img == nil {
		return nil, fmt.Errorf("detect regions: nil image")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("detect regions: empty image %dx%d", w, h)
	}

	boundary, ok := d.findBoundary(img)
	fallback := !ok
	if fallback {
		boundary = scan.Region{X: 0, Y: 0, Width: w, Height: h}
	}

	set := d.regionsFrom(boundary, w, h)
	set.Fallback = fallback
	if err := set.Validate(w, h); err != nil {
		// Degenerate boundary (a few pixels across); the proportions
		// collapse to zero-size regions, so use the full frame instead.
		d.log.Debug().Err(err).Msg("boundary too small, using full frame")
		set = d.regionsFrom(scan.Region{X: 0, Y: 0, Width: w, Height: h}, w, h)
		set.Fallback = true
		if err := set.Validate(w, h); err != nil {
			return nil, fmt.Errorf("detect regions: %w", err)
		}
	}

	d.log.Debug().
		Bool("fallback", set.Fallback).
		Int("boundary_x", boundary.X).
		Int("boundary_y", boundary.Y).
		Int("boundary_width", boundary.Width).
		Int("boundary_height", boundary.Height).
		Msg("regions detected")
	return set, nil
}

// findBoundary runs the edge pipeline and reports the bounding rectangle
// of the largest quadrilateral contour.
func (d *Detector) findBoundary(img image.Image) (scan.Region, bool) {
	gray := utils.ToGray(img)
	blurred := utils.GaussianBlur5(gray)
	edges := utils.Canny(blurred, d.config.CannyLow, d.config.CannyHigh)

	contour := largestContour(edges)
	if len(contour) < 4 {
		return scan.Region{}, false
	}

	perimeter := utils.PolygonPerimeter(contour)
	simplified := utils.SimplifyPolygon(contour, d.config.ApproxTolerance*perimeter)
	if len(simplified) != 4 {
		d.log.Debug().Int("vertices", len(simplified)).Msg("outline is not a quadrilateral")
		return scan.Region{}, false
	}

	// Contour coordinates are zero-based regardless of the image origin.
	box := utils.BoundingBox(simplified)
	bounds := img.Bounds()
	rect := box.ToRect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return scan.Region{}, false
	}
	return scan.Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}, true
}

// regionsFrom slices the boundary rectangle into the three template
// regions, clipped to the image.
func (d *Detector) regionsFrom(boundary scan.Region, imgW, imgH int) *scan.RegionSet {
	t := d.config.Template
	bx, by := float64(boundary.X), float64(boundary.Y)
	bw, bh := float64(boundary.Width), float64(boundary.Height)

	fieldX := bx + t.MarginX*bw
	fieldW := t.FieldWidth * bw

	nombre := clipRegion(fieldX, by+t.NombreTop*bh, fieldW, t.NombreHeight*bh, imgW, imgH)
	curp := clipRegion(fieldX, by+t.CURPTop*bh, fieldW, t.CURPHeight*bh, imgW, imgH)
	omrTop := by + t.OMRTop*bh
	omr := clipRegion(fieldX, omrTop, fieldW, by+bh-omrTop, imgW, imgH)

	return &scan.RegionSet{Nombre: nombre, CURP: curp, OMR: omr}
}

// clipRegion rounds a float rectangle to pixels and clips it to the
// image, keeping at least one pixel in each dimension when the origin
// is inside the frame.
func clipRegion(x, y, w, h float64, imgW, imgH int) scan.Region {
	x0 := utils.ClampInt(int(math.Round(x)), 0, imgW-1)
	y0 := utils.ClampInt(int(math.Round(y)), 0, imgH-1)
	x1 := utils.ClampInt(int(math.Round(x+w)), x0+1, imgW)
	y1 := utils.ClampInt(int(math.Round(y+h)), y0+1, imgH)
	return scan.Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
