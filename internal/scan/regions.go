package scan

import (
	"fmt"
	"image"
)

// Region is an axis-aligned rectangle in pixel space, relative to the
// enhanced image.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate checks that the region has positive dimensions and lies
// within an image of the given size.
func (r Region) Validate(imageWidth, imageHeight int) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region %dx%d has non-positive dimensions", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > imageWidth || r.Y+r.Height > imageHeight {
		return fmt.Errorf("region (%d,%d %dx%d) exceeds image bounds %dx%d",
			r.X, r.Y, r.Width, r.Height, imageWidth, imageHeight)
	}
	return nil
}

// RegionSet names the three fixed template regions of an answer sheet.
// It is always fully populated; boundary detection failures degrade to a
// full-frame fallback layout instead of omitting regions.
type RegionSet struct {
	Nombre   Region `json:"nombre"`
	CURP     Region `json:"curp"`
	OMR      Region `json:"omr"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Validate checks all three regions against the image size.
func (rs *RegionSet) Validate(imageWidth, imageHeight int) error {
	if err := rs.Nombre.Validate(imageWidth, imageHeight); err != nil {
		return fmt.Errorf("nombre: %w", err)
	}
	if err := rs.CURP.Validate(imageWidth, imageHeight); err != nil {
		return fmt.Errorf("curp: %w", err)
	}
	if err := rs.OMR.Validate(imageWidth, imageHeight); err != nil {
		return fmt.Errorf("omr: %w", err)
	}
	return nil
}
