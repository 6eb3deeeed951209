package enhance

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeQualityResolution(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	q := AnalyzeQuality(img)
	require.NotNil(t, q)
	assert.Equal(t, "64x48", q.Resolution)
}

func TestClarityOrdering(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 200
	}

	textured := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			v := uint8(40)
			if (x/4+y/4)%2 == 0 {
				v = 220
			}
			textured.Pix[y*textured.Stride+x] = v
		}
	}

	qBlank := AnalyzeQuality(blank)
	qTextured := AnalyzeQuality(textured)
	assert.Equal(t, 0.0, qBlank.Clarity)
	assert.Greater(t, qTextured.Clarity, qBlank.Clarity)
}

func TestSkewZeroWithoutLines(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	q := AnalyzeQuality(img)
	assert.Equal(t, 0.0, q.SkewAngle)
}

// lineImage draws a thick dark line with the given slope on a white sheet.
func lineImage(width, height int, slope float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 245
	}
	y0 := float64(height) / 2
	for x := 10; x < width-10; x++ {
		y := int(math.Round(y0 + slope*float64(x-10)))
		for d := range 4 {
			yy := y + d
			if yy >= 0 && yy < height {
				img.SetGray(x, yy, color.Gray{Y: 10})
			}
		}
	}
	return img
}

func TestSkewHorizontalLine(t *testing.T) {
	img := lineImage(400, 200, 0)
	q := AnalyzeQuality(img)
	assert.InDelta(t, 0.0, q.SkewAngle, 1.0)
}

func TestSkewTiltedLine(t *testing.T) {
	slope := math.Tan(5 * math.Pi / 180)
	img := lineImage(400, 200, slope)
	q := AnalyzeQuality(img)
	assert.InDelta(t, 5.0, q.SkewAngle, 2.0)
}
