package enhance

import (
	"image"
	"math"
)

// equalizeLuminance converts the image into LAB space, applies contrast
// limited adaptive histogram equalization (CLAHE) to the L channel and
// converts back. Chromaticity is untouched, so colors do not shift.
func equalizeLuminance(src *image.NRGBA, clipLimit float64, tiles int) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return src
	}

	l := make([]uint8, width*height)
	a := make([]float64, width*height)
	b := make([]float64, width*height)
	for y := range height {
		for x := range width {
			i := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			lf, af, bf := rgbToLab(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			idx := y*width + x
			// L is [0,100]; store as 8-bit for histogram work.
			l[idx] = uint8(math.Round(lf * 255.0 / 100.0))
			a[idx] = af
			b[idx] = bf
		}
	}

	equalized := claheChannel(l, width, height, clipLimit, tiles)

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			idx := y*width + x
			lf := float64(equalized[idx]) * 100.0 / 255.0
			r, g, bl := labToRGB(lf, a[idx], b[idx])
			oi := out.PixOffset(x, y)
			out.Pix[oi] = r
			out.Pix[oi+1] = g
			out.Pix[oi+2] = bl
			out.Pix[oi+3] = src.Pix[src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)+3]
		}
	}
	return out
}

// claheChannel runs CLAHE over a single 8-bit channel. The image is
// divided into a tiles x tiles grid; each tile gets a clipped,
// redistributed histogram and an equalization lookup table. Pixels are
// mapped by bilinearly interpolating the four surrounding tile tables.
func claheChannel(channel []uint8, width, height int, clipLimit float64, tiles int) []uint8 {
	if tiles < 1 {
		tiles = 1
	}
	tileW := (width + tiles - 1) / tiles
	tileH := (height + tiles - 1) / tiles
	if tileW == 0 {
		tileW = 1
	}
	if tileH == 0 {
		tileH = 1
	}
	tilesX := (width + tileW - 1) / tileW
	tilesY := (height + tileH - 1) / tileH

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := range tilesY {
		for tx := range tilesX {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := minInt(x0+tileW, width)
			y1 := minInt(y0+tileH, height)
			luts[ty*tilesX+tx] = tileLUT(channel, width, x0, y0, x1, y1, clipLimit)
		}
	}

	out := make([]uint8, len(channel))
	for y := range height {
		for x := range width {
			// Position relative to tile centers.
			fx := (float64(x) - float64(tileW)/2.0 + 0.5) / float64(tileW)
			fy := (float64(y) - float64(tileH)/2.0 + 0.5) / float64(tileH)
			tx0 := int(math.Floor(fx))
			ty0 := int(math.Floor(fy))
			wx := fx - float64(tx0)
			wy := fy - float64(ty0)

			tx1 := clampTile(tx0+1, tilesX)
			ty1 := clampTile(ty0+1, tilesY)
			tx0 = clampTile(tx0, tilesX)
			ty0 = clampTile(ty0, tilesY)

			v := channel[y*width+x]
			v00 := float64(luts[ty0*tilesX+tx0][v])
			v10 := float64(luts[ty0*tilesX+tx1][v])
			v01 := float64(luts[ty1*tilesX+tx0][v])
			v11 := float64(luts[ty1*tilesX+tx1][v])

			top := v00*(1-wx) + v10*wx
			bottom := v01*(1-wx) + v11*wx
			out[y*width+x] = uint8(top*(1-wy) + bottom*wy + 0.5)
		}
	}
	return out
}

// tileLUT builds the clipped equalization table for one tile.
func tileLUT(channel []uint8, width, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	pixels := (x1 - x0) * (y1 - y0)
	if pixels == 0 {
		var identity [256]uint8
		for i := range identity {
			identity[i] = uint8(i)
		}
		return identity
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[channel[y*width+x]]++
		}
	}

	// Clip histogram bins and redistribute the excess evenly.
	limit := int(clipLimit * float64(pixels) / 256.0)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}
	if residual := excess % 256; residual > 0 {
		step := 256 / residual
		if step < 1 {
			step = 1
		}
		for i, given := 0, 0; i < 256 && given < residual; i, given = i+step, given+1 {
			hist[i]++
		}
	}

	var lut [256]uint8
	cdf := 0
	for i := range hist {
		cdf += hist[i]
		lut[i] = uint8(math.Round(float64(cdf) * 255.0 / float64(pixels)))
	}
	return lut
}

func clampTile(t, n int) int {
	if t < 0 {
		return 0
	}
	if t >= n {
		return n - 1
	}
	return t
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sRGB <-> CIELAB conversion with the D65 white point.

func rgbToLab(r, g, b uint8) (float64, float64, float64) {
	rl := srgbToLinear(float64(r) / 255.0)
	gl := srgbToLinear(float64(g) / 255.0)
	bl := srgbToLinear(float64(b) / 255.0)

	x := 0.4124564*rl + 0.3575761*gl + 0.1804375*bl
	y := 0.2126729*rl + 0.7151522*gl + 0.0721750*bl
	z := 0.0193339*rl + 0.1191920*gl + 0.9503041*bl

	fx := labF(x / 0.95047)
	fy := labF(y / 1.0)
	fz := labF(z / 1.08883)

	l := 116*fy - 16
	return l, 500 * (fx - fy), 200 * (fy - fz)
}

func labToRGB(l, a, b float64) (uint8, uint8, uint8) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	x := 0.95047 * labFInv(fx)
	y := 1.0 * labFInv(fy)
	z := 1.08883 * labFInv(fz)

	rl := 3.2404542*x - 1.5371385*y - 0.4985314*z
	gl := -0.9692660*x + 1.8760108*y + 0.0415560*z
	bl := 0.0556434*x - 0.2040259*y + 1.0572252*z

	return linearToSRGB(rl), linearToSRGB(gl), linearToSRGB(bl)
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) uint8 {
	if c <= 0 {
		return 0
	}
	var v float64
	if c <= 0.0031308 {
		v = c * 12.92
	} else {
		v = 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

const (
	labEpsilon = 216.0 / 24389.0
	labKappa   = 24389.0 / 27.0
)

func labF(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return (labKappa*t + 16) / 116
}

func labFInv(f float64) float64 {
	f3 := f * f * f
	if f3 > labEpsilon {
		return f3
	}
	return (116*f - 16) / labKappa
}
