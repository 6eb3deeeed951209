package utils

import "image"

// OtsuThreshold picks the global threshold that maximizes between-class
// variance of the intensity histogram.
func OtsuThreshold(src *image.Gray) uint8 {
	bounds := src.Bounds()
	var hist [256]int
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[src.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumBack, weightBack float64
	bestThreshold := uint8(0)
	bestVariance := -1.0
	for t := range 256 {
		weightBack += float64(hist[t])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		diff := meanBack - meanFore
		variance := weightBack * weightFore * diff * diff
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = uint8(t)
		}
	}
	return bestThreshold
}

// Binarize maps pixels above the threshold to white and the rest to
// black.
func Binarize(src *image.Gray, threshold uint8) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			if v > threshold {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
