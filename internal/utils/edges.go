package utils

import (
	"image"
	"math"
)

// Gradients holds per-pixel Sobel gradients for a grayscale image.
type Gradients struct {
	GX     []float64
	GY     []float64
	Mag    []float64
	Width  int
	Height int
}

// Sobel computes 3x3 Sobel gradients and magnitudes for a grayscale image.
// Border pixels are computed with edge-clamped coordinates.
func Sobel(src *image.Gray) *Gradients {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	g := &Gradients{
		GX:     make([]float64, width*height),
		GY:     make([]float64, width*height),
		Mag:    make([]float64, width*height),
		Width:  width,
		Height: height,
	}
	at := func(x, y int) float64 {
		x = ClampInt(x, 0, width-1)
		y = ClampInt(y, 0, height-1)
		return float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}
	for y := range height {
		for x := range width {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			idx := y*width + x
			g.GX[idx] = gx
			g.GY[idx] = gy
			g.Mag[idx] = math.Hypot(gx, gy)
		}
	}
	return g
}

// Canny performs Canny edge detection on a grayscale image using the given
// hysteresis thresholds. The input is expected to be pre-smoothed; the
// output is a binary map with edge pixels set to 255.
func Canny(src *image.Gray, lowThreshold, highThreshold float64) *image.Gray {
	grads := Sobel(src)
	width, height := grads.Width, grads.Height
	suppressed := nonMaxSuppress(grads)
	return hysteresis(suppressed, width, height, lowThreshold, highThreshold)
}

// nonMaxSuppress thins gradient magnitudes to single-pixel ridges by
// comparing each pixel against its two neighbors along the gradient
// direction, quantized to four sectors.
func nonMaxSuppress(g *Gradients) []float64 {
	width, height := g.Width, g.Height
	out := make([]float64, width*height)
	for y := range height {
		for x := range width {
			idx := y*width + x
			mag := g.Mag[idx]
			if mag == 0 {
				continue
			}
			angle := math.Atan2(g.GY[idx], g.GX[idx]) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			var n1, n2 float64
			switch {
			case angle < 22.5 || angle >= 157.5: // horizontal gradient
				n1 = magAt(g, x-1, y)
				n2 = magAt(g, x+1, y)
			case angle < 67.5: // diagonal /
				n1 = magAt(g, x+1, y-1)
				n2 = magAt(g, x-1, y+1)
			case angle < 112.5: // vertical gradient
				n1 = magAt(g, x, y-1)
				n2 = magAt(g, x, y+1)
			default: // diagonal \
				n1 = magAt(g, x-1, y-1)
				n2 = magAt(g, x+1, y+1)
			}
			if mag >= n1 && mag >= n2 {
				out[idx] = mag
			}
		}
	}
	return out
}

func magAt(g *Gradients, x, y int) float64 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Mag[y*g.Width+x]
}

// hysteresis applies double thresholding and connects weak edges that
// touch strong edges via an 8-connected flood fill.
func hysteresis(mag []float64, width, height int, low, high float64) *image.Gray {
	const (
		none   = 0
		weak   = 128
		strong = 255
	)
	out := image.NewGray(image.Rect(0, 0, width, height))
	var stack []int
	for idx, m := range mag {
		switch {
		case m >= high:
			out.Pix[idx] = strong
			stack = append(stack, idx)
		case m >= low:
			out.Pix[idx] = weak
		}
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := idx%width, idx/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				nidx := ny*width + nx
				if out.Pix[nidx] == weak {
					out.Pix[nidx] = strong
					stack = append(stack, nidx)
				}
			}
		}
	}
	for idx := range out.Pix {
		if out.Pix[idx] == weak {
			out.Pix[idx] = none
		}
	}
	return out
}
