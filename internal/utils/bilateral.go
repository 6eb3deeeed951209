package utils

import (
	"image"
	"math"
)

// bilateralWeights precomputes the spatial kernel and the color-distance
// lookup used by the bilateral filters.
type bilateralWeights struct {
	radius  int
	spatial []float64
	color   [256 * 3]float64
}

func newBilateralWeights(diameter int, sigmaColor, sigmaSpace float64) *bilateralWeights {
	if diameter < 1 {
		diameter = 1
	}
	radius := diameter / 2
	if radius < 1 {
		radius = 1
	}
	w := &bilateralWeights{radius: radius}

	size := 2*radius + 1
	w.spatial = make([]float64, size*size)
	gaussSpace := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			w.spatial[(dy+radius)*size+(dx+radius)] = math.Exp(d2 * gaussSpace)
		}
	}

	gaussColor := -0.5 / (sigmaColor * sigmaColor)
	for d := range w.color {
		w.color[d] = math.Exp(float64(d) * float64(d) * gaussColor)
	}
	return w
}

// BilateralGray applies an edge-preserving bilateral filter to a
// grayscale image. Pixels are weighted by spatial distance and by
// intensity difference, so flat areas smooth while edges survive.
func BilateralGray(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out
	}

	w := newBilateralWeights(diameter, sigmaColor, sigmaSpace)
	r := w.radius
	size := 2*r + 1

	for y := range height {
		for x := range width {
			center := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			var sum, norm float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					xx := ClampInt(x+dx, 0, width-1)
					yy := ClampInt(y+dy, 0, height-1)
					v := src.GrayAt(bounds.Min.X+xx, bounds.Min.Y+yy).Y
					diff := int(v) - int(center)
					if diff < 0 {
						diff = -diff
					}
					weight := w.spatial[(dy+r)*size+(dx+r)] * w.color[diff]
					sum += weight * float64(v)
					norm += weight
				}
			}
			out.Pix[y*out.Stride+x] = uint8(sum/norm + 0.5)
		}
	}
	return out
}

// BilateralNRGBA applies a bilateral filter to a color image. The color
// distance is the sum of absolute channel differences, matching the
// common joint-channel formulation.
func BilateralNRGBA(src *image.NRGBA, diameter int, sigmaColor, sigmaSpace float64) *image.NRGBA {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out
	}

	w := newBilateralWeights(diameter, sigmaColor, sigmaSpace)
	r := w.radius
	size := 2*r + 1

	for y := range height {
		for x := range width {
			ci := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			cr := src.Pix[ci]
			cg := src.Pix[ci+1]
			cb := src.Pix[ci+2]
			var sumR, sumG, sumB, norm float64
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					xx := ClampInt(x+dx, 0, width-1)
					yy := ClampInt(y+dy, 0, height-1)
					ni := src.PixOffset(bounds.Min.X+xx, bounds.Min.Y+yy)
					nr := src.Pix[ni]
					ng := src.Pix[ni+1]
					nb := src.Pix[ni+2]
					dist := absDiff(nr, cr) + absDiff(ng, cg) + absDiff(nb, cb)
					weight := w.spatial[(dy+r)*size+(dx+r)] * w.color[dist]
					sumR += weight * float64(nr)
					sumG += weight * float64(ng)
					sumB += weight * float64(nb)
					norm += weight
				}
			}
			oi := out.PixOffset(x, y)
			out.Pix[oi] = uint8(sumR/norm + 0.5)
			out.Pix[oi+1] = uint8(sumG/norm + 0.5)
			out.Pix[oi+2] = uint8(sumB/norm + 0.5)
			out.Pix[oi+3] = src.Pix[ci+3]
		}
	}
	return out
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
