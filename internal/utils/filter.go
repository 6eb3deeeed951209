package utils

import "image"

// gaussian5 is the binomial approximation of a 5x5 Gaussian kernel,
// normalized by 256.
var gaussian5 = [5]int{1, 4, 6, 4, 1}

// GaussianBlur5 applies a separable 5x5 Gaussian blur to a grayscale
// image. Borders are handled by clamping coordinates to the image edge.
func GaussianBlur5(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return image.NewGray(bounds)
	}

	tmp := make([]int, width*height)
	out := image.NewGray(image.Rect(0, 0, width, height))

	// Horizontal pass
	for y := range height {
		for x := range width {
			sum := 0
			for k := -2; k <= 2; k++ {
				xx := ClampInt(x+k, 0, width-1)
				sum += int(src.GrayAt(bounds.Min.X+xx, bounds.Min.Y+y).Y) * gaussian5[k+2]
			}
			tmp[y*width+x] = sum
		}
	}

	// Vertical pass
	for y := range height {
		for x := range width {
			sum := 0
			for k := -2; k <= 2; k++ {
				yy := ClampInt(y+k, 0, height-1)
				sum += tmp[yy*width+x] * gaussian5[k+2]
			}
			out.Pix[y*out.Stride+x] = uint8(sum / 256)
		}
	}
	return out
}
