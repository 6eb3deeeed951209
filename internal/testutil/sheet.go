package testutil

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Colors approximating a phone photograph of a printed sheet.
var (
	background = color.NRGBA{R: 30, G: 30, B: 30, A: 255}
	paper      = color.NRGBA{R: 235, G: 235, B: 235, A: 255}
	ink        = color.NRGBA{R: 25, G: 25, B: 25, A: 255}
)

// SheetConfig describes a synthetic exam sheet photograph: a bright
// sheet on a dark background with a name row, an identity row, and a
// grid of answer bubbles in the lower part.
type SheetConfig struct {
	Width  int
	Height int
	Inset  int // dark border width around the sheet

	Nombre string // text drawn in the name row
	CURP   string // text drawn in the identity row

	Bubbles int   // bubbles drawn in the mark area
	PerRow  int   // bubbles per row; 0 puts them all in one row
	Marked  []int // indices of bubbles drawn as filled disks
	Radius  int   // bubble radius in pixels
}

// DefaultSheetConfig returns a sheet with two marked and three empty
// bubbles in a single row.
func DefaultSheetConfig() SheetConfig {
	return SheetConfig{
		Width:   640,
		Height:  800,
		Inset:   60,
		Nombre:  "ANA TORRES",
		CURP:    "PEGJ850315HJCRRN09",
		Bubbles: 5,
		Marked:  []int{0, 2},
		Radius:  15,
	}
}

// GenerateSheet renders the configured sheet. Field rows and the
// bubble grid sit at the proportions of the printed sheet, so the
// boundary detector and the bubble grader both find them.
func GenerateSheet(config SheetConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, config.Width, config.Height))
	fillRect(img, img.Bounds(), background)

	sheet := image.Rect(config.Inset, config.Inset, config.Width-config.Inset, config.Height-config.Inset)
	fillRect(img, sheet, paper)

	w := float64(sheet.Dx())
	h := float64(sheet.Dy())

	drawText(img, config.Nombre, sheet.Min.X+int(0.10*w), sheet.Min.Y+int(0.11*h))
	drawText(img, config.CURP, sheet.Min.X+int(0.10*w), sheet.Min.Y+int(0.23*h))

	perRow := config.PerRow
	if perRow <= 0 {
		perRow = config.Bubbles
	}
	marked := make(map[int]bool, len(config.Marked))
	for _, i := range config.Marked {
		marked[i] = true
	}

	spacing := 5 * config.Radius
	originX := sheet.Min.X + int(0.10*w)
	originY := sheet.Min.Y + int(0.36*h)
	for i := range config.Bubbles {
		cx := originX + (i%perRow)*spacing
		cy := originY + (i/perRow)*spacing
		if marked[i] {
			drawDisk(img, cx, cy, config.Radius, ink)
		} else {
			drawRing(img, cx, cy, config.Radius, ink)
		}
	}
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func drawDisk(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawRing(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for dy := -r - 1; dy <= r+1; dy++ {
		for dx := -r - 1; dx <= r+1; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d >= float64(r)-1 && d <= float64(r)+1 {
				img.SetNRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawText(img *image.NRGBA, text string, x, y int) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(ink),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
