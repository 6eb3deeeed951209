package layout

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// Overlay colors per region.
var (
	nombreColor = color.RGBA{R: 0, G: 180, B: 0, A: 255}
	curpColor   = color.RGBA{R: 0, G: 90, B: 220, A: 255}
	omrColor    = color.RGBA{R: 220, G: 40, B: 40, A: 255}
)

// RenderOverlay draws the detected regions over the image and returns
// an RGBA copy: nombre in green, CURP in blue, OMR in red.
func RenderOverlay(img image.Image, regions *scan.RegionSet, thickness int) *image.RGBA {
	if img == nil {
		return nil
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	if regions == nil {
		return dst
	}

	if thickness < 1 {
		thickness = 1
	}
	offset := bounds.Min
	utils.DrawRect(dst, regions.Nombre.Rect().Sub(offset), nombreColor, thickness)
	utils.DrawRect(dst, regions.CURP.Rect().Sub(offset), curpColor, thickness)
	utils.DrawRect(dst, regions.OMR.Rect().Sub(offset), omrColor, thickness)
	return dst
}
